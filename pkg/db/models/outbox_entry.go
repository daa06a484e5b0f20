package models

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
)

// OutboxEntry is a sale recorded at the register that the server has not confirmed yet.
type OutboxEntry struct {
	ID             uint64             `gorm:"column:id;primaryKey;autoIncrement"`
	IdempotencyKey string             `gorm:"column:idempotency_key;not null;uniqueIndex"`
	StoreID        string             `gorm:"column:store_id;not null"`
	BranchID       string             `gorm:"column:branch_id;not null"`
	Payload        json.RawMessage    `gorm:"column:payload;not null"`
	Status         enums.OutboxStatus `gorm:"column:status;not null;default:pending"`
	RetryCount     int                `gorm:"column:retry_count;not null;default:0"`
	NextRetryAt    *time.Time         `gorm:"column:next_retry_at"`
	LastError      *string            `gorm:"column:last_error"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (OutboxEntry) TableName() string { return "outbox" }
