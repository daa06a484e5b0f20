package catalog

import (
	"context"
	"time"

	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/gateway"
)

// Reader serves the cached catalog of one terminal scope.
type Reader struct {
	repo  *Repository
	scope gateway.Scope
}

func NewReader(repo *Repository, scope gateway.Scope) *Reader {
	return &Reader{repo: repo, scope: scope}
}

func (r *Reader) Products(ctx context.Context) ([]models.CachedProduct, error) {
	return r.repo.ListProducts(ctx, r.scope)
}

func (r *Reader) Categories(ctx context.Context) ([]models.CachedCategory, error) {
	return r.repo.ListCategories(ctx, r.scope)
}

func (r *Reader) Customers(ctx context.Context) ([]models.CachedCustomer, error) {
	return r.repo.ListCustomers(ctx, r.scope)
}

func (r *Reader) Watermarks(ctx context.Context) (map[string]time.Time, error) {
	return r.repo.Watermarks(ctx, r.scope)
}
