package outbox

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
)

// ErrNotFound is returned when no entry matches the requested id.
var ErrNotFound = errors.New("outbox entry not found")

// ListFilter narrows List results. A zero Status matches every stored status.
type ListFilter struct {
	Status enums.OutboxStatus
	Limit  int
}

// FailureUpdate is the state written after a failed push attempt.
type FailureUpdate struct {
	Status      enums.OutboxStatus
	RetryCount  int
	NextRetryAt *time.Time
	LastError   string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, entry *models.OutboxEntry) error {
	if entry == nil {
		return errors.New("entry required")
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) Get(ctx context.Context, id uint64) (*models.OutboxEntry, error) {
	var row models.OutboxEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.OutboxEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.OutboxEntry{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var rows []models.OutboxEntry
	err := query.Order("created_at ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

// FetchDue returns up to limit entries eligible for a push attempt at now, oldest first.
func (r *Repository) FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEntry, error) {
	var rows []models.OutboxEntry
	err := r.db.WithContext(ctx).
		Where("status IN ?", enums.DueOutboxStatuses).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now.UTC()).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkSyncing claims a due entry. It reports false when the entry is no longer pending or failed.
func (r *Repository) MarkSyncing(ctx context.Context, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Where("id = ? AND status IN ?", id, enums.DueOutboxStatuses).
		Update("status", enums.OutboxStatusSyncing)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed records a failed attempt on an entry this worker holds in syncing.
func (r *Repository) MarkFailed(ctx context.Context, id uint64, update FailureUpdate) error {
	res := r.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Where("id = ? AND status = ?", id, enums.OutboxStatusSyncing).
		Updates(map[string]any{
			"status":        update.Status,
			"retry_count":   update.RetryCount,
			"next_retry_at": update.NextRetryAt,
			"last_error":    update.LastError,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an entry unless it is mid-push. It reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, enums.OutboxStatusSyncing).
		Delete(&models.OutboxEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteSynced removes an entry the server confirmed.
func (r *Repository) DeleteSynced(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, enums.OutboxStatusSyncing).
		Delete(&models.OutboxEntry{}).Error
}

// Requeue moves a failed or rejected entry back to pending, clearing its retry time.
func (r *Repository) Requeue(ctx context.Context, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Where("id = ? AND status IN ?", id, []enums.OutboxStatus{enums.OutboxStatusFailed, enums.OutboxStatusRejected}).
		Updates(map[string]any{
			"status":        enums.OutboxStatusPending,
			"next_retry_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecoverSyncing resets every syncing entry to pending and returns how many moved.
func (r *Repository) RecoverSyncing(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Where("status = ?", enums.OutboxStatusSyncing).
		Update("status", enums.OutboxStatusPending)
	return res.RowsAffected, res.Error
}

func (r *Repository) CountByStatus(ctx context.Context) (map[enums.OutboxStatus]int64, error) {
	type row struct {
		Status enums.OutboxStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.OutboxEntry{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[enums.OutboxStatus]int64, len(enums.StoredOutboxStatuses))
	for _, status := range enums.StoredOutboxStatuses {
		counts[status] = 0
	}
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
