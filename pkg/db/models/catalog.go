package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CachedProduct mirrors a server product for one store/branch scope.
type CachedProduct struct {
	StoreID       string          `gorm:"column:store_id;primaryKey"`
	BranchID      string          `gorm:"column:branch_id;primaryKey"`
	ID            string          `gorm:"column:id;primaryKey"`
	SKU           string          `gorm:"column:sku;not null"`
	Name          string          `gorm:"column:name;not null"`
	Category      string          `gorm:"column:category"`
	Price         decimal.Decimal `gorm:"column:price;not null"`
	Stock         int             `gorm:"column:stock;not null;default:0"`
	Active        bool            `gorm:"column:active;not null;default:true"`
	LastFetchedAt time.Time       `gorm:"column:last_fetched_at;not null"`
}

func (CachedProduct) TableName() string { return "products" }

type CachedCategory struct {
	StoreID       string    `gorm:"column:store_id;primaryKey"`
	BranchID      string    `gorm:"column:branch_id;primaryKey"`
	Name          string    `gorm:"column:name;primaryKey"`
	LastFetchedAt time.Time `gorm:"column:last_fetched_at;not null"`
}

func (CachedCategory) TableName() string { return "categories" }

// CachedCustomer mirrors a server customer for one store/branch scope.
type CachedCustomer struct {
	StoreID       string    `gorm:"column:store_id;primaryKey"`
	BranchID      string    `gorm:"column:branch_id;primaryKey"`
	ID            string    `gorm:"column:id;primaryKey"`
	Name          string    `gorm:"column:name;not null"`
	Email         *string   `gorm:"column:email"`
	Phone         *string   `gorm:"column:phone"`
	LastFetchedAt time.Time `gorm:"column:last_fetched_at;not null"`
}

func (CachedCustomer) TableName() string { return "customers" }

// SyncWatermark records the last committed pull of one dataset.
type SyncWatermark struct {
	StoreID  string    `gorm:"column:store_id;primaryKey"`
	BranchID string    `gorm:"column:branch_id;primaryKey"`
	Key      string    `gorm:"column:key;primaryKey"`
	SyncedAt time.Time `gorm:"column:synced_at;not null"`
}

func (SyncWatermark) TableName() string { return "sync_state" }
