package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/gateway"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
	"github.com/angelmondragon/packfinderz-pos/pkg/metrics"
)

const defaultFetchTimeout = 30 * time.Second

type catalogSource interface {
	ListProducts(ctx context.Context, scope gateway.Scope) ([]gateway.Product, error)
	ListCategories(ctx context.Context, scope gateway.Scope) ([]string, error)
	ListCustomers(ctx context.Context, scope gateway.Scope) ([]gateway.Customer, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type PullerParams struct {
	DB           txRunner
	Repository   *Repository
	Gateway      catalogSource
	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	Scope        gateway.Scope
	FetchTimeout time.Duration
	Now          func() time.Time
}

// PullResult reports rows written per dataset and the datasets that kept their previous cache.
type PullResult struct {
	Products   int                `json:"products"`
	Categories int                `json:"categories"`
	Customers  int                `json:"customers"`
	Failed     []enums.SyncEntity `json:"failed,omitempty"`
}

// Puller refreshes the local catalog cache from the server.
type Puller struct {
	db      txRunner
	repo    *Repository
	source  catalogSource
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
	scope   gateway.Scope
	timeout time.Duration
	now     func() time.Time
}

func NewPuller(params PullerParams) (*Puller, error) {
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("catalog repository is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Scope.StoreID == "" || params.Scope.BranchID == "" {
		return nil, errors.New("store and branch are required")
	}
	timeout := params.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Puller{
		db:      params.DB,
		repo:    params.Repository,
		source:  params.Gateway,
		logg:    params.Logger,
		metrics: params.Metrics,
		scope:   params.Scope,
		timeout: timeout,
		now:     now,
	}, nil
}

// snapshot is one fetched dataset ready to be written.
type snapshot struct {
	count int
	write func(tx *gorm.DB) error
}

// Pull refreshes every dataset independently. A failed dataset keeps its previous rows and
// watermark; its error is combined into the returned error.
func (p *Puller) Pull(ctx context.Context) (PullResult, error) {
	var (
		result PullResult
		errs   error
	)
	for _, entity := range enums.SyncEntities {
		n, err := p.pullEntity(ctx, entity)
		logCtx := p.logg.WithField(ctx, "entity", entity.String())
		if err != nil {
			result.Failed = append(result.Failed, entity)
			errs = multierr.Append(errs, fmt.Errorf("pull %s: %w", entity, err))
			p.metrics.IncPulled(entity.String(), "error")
			p.logg.Warn(p.logg.WithField(logCtx, "error", err.Error()), "catalog pull failed")
			continue
		}
		switch entity {
		case enums.SyncEntityProducts:
			result.Products = n
		case enums.SyncEntityCategories:
			result.Categories = n
		case enums.SyncEntityCustomers:
			result.Customers = n
		}
		p.metrics.IncPulled(entity.String(), "ok")
		p.logg.Info(p.logg.WithField(logCtx, "rows", n), "catalog refreshed")
	}
	return result, errs
}

func (p *Puller) pullEntity(ctx context.Context, entity enums.SyncEntity) (int, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	snap, err := p.fetch(fetchCtx, entity)
	cancel()
	if err != nil {
		return 0, err
	}

	fetchedAt := p.now().UTC()
	err = p.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := snap.write(tx); err != nil {
			return err
		}
		return p.repo.SetWatermark(tx, p.scope, entity, fetchedAt)
	})
	if err != nil {
		return 0, pkgerrors.Storage(err, "replace cached "+entity.String())
	}
	return snap.count, nil
}

func (p *Puller) fetch(ctx context.Context, entity enums.SyncEntity) (snapshot, error) {
	fetchedAt := p.now().UTC()
	switch entity {
	case enums.SyncEntityProducts:
		items, err := p.source.ListProducts(ctx, p.scope)
		if err != nil {
			return snapshot{}, err
		}
		items = lastByID(items, func(item gateway.Product) string { return item.ID })
		rows := make([]models.CachedProduct, 0, len(items))
		for _, item := range items {
			rows = append(rows, models.CachedProduct{
				StoreID:       p.scope.StoreID,
				BranchID:      p.scope.BranchID,
				ID:            item.ID,
				SKU:           item.SKU,
				Name:          item.Name,
				Category:      item.Category,
				Price:         item.Price,
				Stock:         item.Stock,
				Active:        item.Active,
				LastFetchedAt: fetchedAt,
			})
		}
		return snapshot{count: len(rows), write: func(tx *gorm.DB) error {
			return p.repo.ReplaceProducts(tx, p.scope, rows)
		}}, nil
	case enums.SyncEntityCategories:
		names, err := p.source.ListCategories(ctx, p.scope)
		if err != nil {
			return snapshot{}, err
		}
		seen := make(map[string]struct{}, len(names))
		rows := make([]models.CachedCategory, 0, len(names))
		for _, name := range names {
			if _, dup := seen[name]; dup || name == "" {
				continue
			}
			seen[name] = struct{}{}
			rows = append(rows, models.CachedCategory{
				StoreID:       p.scope.StoreID,
				BranchID:      p.scope.BranchID,
				Name:          name,
				LastFetchedAt: fetchedAt,
			})
		}
		return snapshot{count: len(rows), write: func(tx *gorm.DB) error {
			return p.repo.ReplaceCategories(tx, p.scope, rows)
		}}, nil
	case enums.SyncEntityCustomers:
		items, err := p.source.ListCustomers(ctx, p.scope)
		if err != nil {
			return snapshot{}, err
		}
		items = lastByID(items, func(item gateway.Customer) string { return item.ID })
		rows := make([]models.CachedCustomer, 0, len(items))
		for _, item := range items {
			rows = append(rows, models.CachedCustomer{
				StoreID:       p.scope.StoreID,
				BranchID:      p.scope.BranchID,
				ID:            item.ID,
				Name:          item.Name,
				Email:         item.Email,
				Phone:         item.Phone,
				LastFetchedAt: fetchedAt,
			})
		}
		return snapshot{count: len(rows), write: func(tx *gorm.DB) error {
			return p.repo.ReplaceCustomers(tx, p.scope, rows)
		}}, nil
	default:
		return snapshot{}, fmt.Errorf("unknown sync entity %q", entity)
	}
}

// lastByID drops repeated ids, keeping the last occurrence at the position of the first.
func lastByID[T any](items []T, id func(T) string) []T {
	index := make(map[string]int, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key := id(item)
		if i, dup := index[key]; dup {
			out[i] = item
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out
}
