package catalog

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	"github.com/angelmondragon/packfinderz-pos/pkg/gateway"
)

const insertBatchSize = 200

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ReplaceProducts swaps the scope's cached products for rows inside tx.
func (r *Repository) ReplaceProducts(tx *gorm.DB, scope gateway.Scope, rows []models.CachedProduct) error {
	if err := tx.Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Delete(&models.CachedProduct{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, insertBatchSize).Error
}

func (r *Repository) ReplaceCategories(tx *gorm.DB, scope gateway.Scope, rows []models.CachedCategory) error {
	if err := tx.Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Delete(&models.CachedCategory{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, insertBatchSize).Error
}

func (r *Repository) ReplaceCustomers(tx *gorm.DB, scope gateway.Scope, rows []models.CachedCustomer) error {
	if err := tx.Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Delete(&models.CachedCustomer{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, insertBatchSize).Error
}

// SetWatermark upserts the last successful pull time for entity.
func (r *Repository) SetWatermark(tx *gorm.DB, scope gateway.Scope, entity enums.SyncEntity, at time.Time) error {
	row := models.SyncWatermark{
		StoreID:  scope.StoreID,
		BranchID: scope.BranchID,
		Key:      entity.WatermarkKey(),
		SyncedAt: at.UTC(),
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_id"}, {Name: "branch_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"synced_at"}),
	}).Create(&row).Error
}

func (r *Repository) ListProducts(ctx context.Context, scope gateway.Scope) ([]models.CachedProduct, error) {
	var rows []models.CachedProduct
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListCategories(ctx context.Context, scope gateway.Scope) ([]models.CachedCategory, error) {
	var rows []models.CachedCategory
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Order("name ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ListCustomers(ctx context.Context, scope gateway.Scope) ([]models.CachedCustomer, error) {
	var rows []models.CachedCustomer
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// Watermarks returns the last pull time per watermark key for scope.
func (r *Repository) Watermarks(ctx context.Context, scope gateway.Scope) (map[string]time.Time, error) {
	var rows []models.SyncWatermark
	err := r.db.WithContext(ctx).
		Where("store_id = ? AND branch_id = ?", scope.StoreID, scope.BranchID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		out[row.Key] = row.SyncedAt
	}
	return out, nil
}
