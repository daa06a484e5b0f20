package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/packfinderz-pos/pkg/db"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/dbtest"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/gateway"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
	"github.com/angelmondragon/packfinderz-pos/pkg/metrics"
)

var (
	scope   = gateway.Scope{StoreID: "store-1", BranchID: "branch-1"}
	pulled1 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	pulled2 = pulled1.Add(time.Hour)
)

type fakeSource struct {
	products    []gateway.Product
	categories  []string
	customers   []gateway.Customer
	productsErr error
	categoryErr error
	customerErr error
	scopes      []gateway.Scope
}

func (f *fakeSource) ListProducts(_ context.Context, s gateway.Scope) ([]gateway.Product, error) {
	f.scopes = append(f.scopes, s)
	return f.products, f.productsErr
}

func (f *fakeSource) ListCategories(_ context.Context, s gateway.Scope) ([]string, error) {
	f.scopes = append(f.scopes, s)
	return f.categories, f.categoryErr
}

func (f *fakeSource) ListCustomers(_ context.Context, s gateway.Scope) ([]gateway.Customer, error) {
	f.scopes = append(f.scopes, s)
	return f.customers, f.customerErr
}

func product(id, name, price string) gateway.Product {
	return gateway.Product{ID: id, SKU: "SKU-" + id, Name: name, Price: decimal.RequireFromString(price), Stock: 3, Active: true}
}

type pullerHarness struct {
	client *db.Client
	repo   *Repository
	source *fakeSource
	now    time.Time
	puller *Puller
}

func newPullerHarness(t *testing.T, m *metrics.SyncMetrics) *pullerHarness {
	t.Helper()
	h := &pullerHarness{
		client: dbtest.New(t),
		source: &fakeSource{},
		now:    pulled1,
	}
	h.repo = NewRepository(h.client.DB())
	puller, err := NewPuller(PullerParams{
		DB:         h.client,
		Repository: h.repo,
		Gateway:    h.source,
		Logger:     logger.Nop(),
		Metrics:    m,
		Scope:      scope,
		Now:        func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.puller = puller
	return h
}

func TestNewPullerValidatesParams(t *testing.T) {
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	_, err := NewPuller(PullerParams{Repository: repo, Gateway: &fakeSource{}, Logger: logger.Nop(), Scope: scope})
	require.Error(t, err)
	_, err = NewPuller(PullerParams{DB: client, Repository: repo, Gateway: &fakeSource{}, Logger: logger.Nop()})
	require.Error(t, err)
}

func TestPullReplacesCacheExactly(t *testing.T) {
	h := newPullerHarness(t, nil)
	ctx := context.Background()

	h.source.products = []gateway.Product{product("p1", "Apple", "1.10"), product("p2", "Banana", "0.25"), product("p3", "Cherry", "4.00")}
	h.source.categories = []string{"fruit", "produce", "fruit"}
	email := "ana@example.com"
	h.source.customers = []gateway.Customer{{ID: "c1", Name: "Ana", Email: &email}}

	result, err := h.puller.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, PullResult{Products: 3, Categories: 2, Customers: 1}, result)

	h.now = pulled2
	h.source.products = []gateway.Product{product("p2", "Banana", "0.30"), product("p4", "Date", "2.00")}
	h.source.categories = []string{"fruit"}
	h.source.customers = nil

	result, err = h.puller.Pull(ctx)
	require.NoError(t, err)
	assert.Equal(t, PullResult{Products: 2, Categories: 1, Customers: 0}, result)

	products, err := h.repo.ListProducts(ctx, scope)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("0.30")))
	assert.Equal(t, "p4", products[1].ID)
	assert.True(t, products[1].LastFetchedAt.Equal(pulled2))

	categories, err := h.repo.ListCategories(ctx, scope)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "fruit", categories[0].Name)

	customers, err := h.repo.ListCustomers(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, customers)

	marks, err := h.repo.Watermarks(ctx, scope)
	require.NoError(t, err)
	require.Len(t, marks, 3)
	for _, entity := range enums.SyncEntities {
		assert.True(t, marks[entity.WatermarkKey()].Equal(pulled2), entity.String())
	}
}

// A snapshot that repeats an id keeps the last copy instead of failing the dataset.
func TestPullCollapsesRepeatedIDs(t *testing.T) {
	h := newPullerHarness(t, nil)
	ctx := context.Background()

	h.source.products = []gateway.Product{product("p1", "Apple", "1.10"), product("p2", "Banana", "0.25"), product("p1", "Apple", "1.20")}
	h.source.customers = []gateway.Customer{{ID: "c1", Name: "Ana"}, {ID: "c1", Name: "Ana Maria"}}

	result, err := h.puller.Pull(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 2, result.Products)
	assert.Equal(t, 1, result.Customers)

	products, err := h.repo.ListProducts(ctx, scope)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("1.20")))

	customers, err := h.repo.ListCustomers(ctx, scope)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Ana Maria", customers[0].Name)

	marks, err := h.repo.Watermarks(ctx, scope)
	require.NoError(t, err)
	assert.True(t, marks[enums.SyncEntityProducts.WatermarkKey()].Equal(pulled1))
	assert.True(t, marks[enums.SyncEntityCustomers.WatermarkKey()].Equal(pulled1))
}

// A failing dataset keeps its previous cache and watermark while the others refresh.
func TestPullIsolatesEntityFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newPullerHarness(t, metrics.NewSyncMetrics(reg))
	ctx := context.Background()

	h.source.products = []gateway.Product{product("p1", "Apple", "1.10")}
	h.source.categories = []string{"fruit"}
	h.source.customers = []gateway.Customer{{ID: "c1", Name: "Ana"}}
	_, err := h.puller.Pull(ctx)
	require.NoError(t, err)

	h.now = pulled2
	h.source.products = []gateway.Product{product("p9", "Fig", "3.00")}
	h.source.categories = []string{"dried"}
	h.source.customerErr = pkgerrors.New(pkgerrors.CodeNetwork, "connection reset")

	result, err := h.puller.Pull(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull customers")
	assert.Equal(t, []enums.SyncEntity{enums.SyncEntityCustomers}, result.Failed)
	assert.Equal(t, 1, result.Products)

	products, err := h.repo.ListProducts(ctx, scope)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "p9", products[0].ID)

	customers, err := h.repo.ListCustomers(ctx, scope)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "c1", customers[0].ID)

	marks, err := h.repo.Watermarks(ctx, scope)
	require.NoError(t, err)
	assert.True(t, marks["last_product_sync"].Equal(pulled2))
	assert.True(t, marks["last_category_sync"].Equal(pulled2))
	assert.True(t, marks["last_customer_sync"].Equal(pulled1))

	assert.Equal(t, 1.0, pullCount(t, reg, "customers", "error"))
	assert.Equal(t, 2.0, pullCount(t, reg, "products", "ok"))
}

func pullCount(t *testing.T, reg *prometheus.Registry, entity, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "pos_catalog_pull_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, map[string]string{"entity": entity, "result": result}) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	matched := 0
	for _, pair := range metric.GetLabel() {
		if v, ok := want[pair.GetName()]; ok {
			if v != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

func TestPullCombinesAllFailures(t *testing.T) {
	h := newPullerHarness(t, nil)
	h.source.productsErr = errors.New("products down")
	h.source.categoryErr = errors.New("categories down")
	h.source.customerErr = errors.New("customers down")

	result, err := h.puller.Pull(context.Background())
	require.Error(t, err)
	assert.Len(t, result.Failed, 3)
	for _, msg := range []string{"products down", "categories down", "customers down"} {
		assert.Contains(t, err.Error(), msg)
	}

	marks, err := h.repo.Watermarks(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, marks)
}

// A write failure rolls back the whole dataset, leaving the previous rows in place.
func TestPullWriteFailureRollsBack(t *testing.T) {
	h := newPullerHarness(t, nil)
	ctx := context.Background()
	h.source.products = []gateway.Product{product("p1", "Apple", "1.10"), product("p2", "Pear", "1.20")}
	_, err := h.puller.Pull(ctx)
	require.NoError(t, err)

	h.now = pulled2
	h.source.products = []gateway.Product{product("p3", "Plum", "0.90"), product("p3", "Plum", "0.90")}
	result, err := h.puller.Pull(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStorage(err))
	assert.Equal(t, []enums.SyncEntity{enums.SyncEntityProducts}, result.Failed)

	products, err := h.repo.ListProducts(ctx, scope)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)

	marks, err := h.repo.Watermarks(ctx, scope)
	require.NoError(t, err)
	assert.True(t, marks["last_product_sync"].Equal(pulled1))
}

func TestPullLeavesOtherScopesAlone(t *testing.T) {
	h := newPullerHarness(t, nil)
	ctx := context.Background()
	other := gateway.Scope{StoreID: "store-1", BranchID: "branch-2"}

	err := h.client.WithTx(ctx, func(tx *gorm.DB) error {
		return h.repo.ReplaceCategories(tx, other, []models.CachedCategory{
			{StoreID: other.StoreID, BranchID: other.BranchID, Name: "bakery", LastFetchedAt: pulled1},
		})
	})
	require.NoError(t, err)

	h.source.categories = []string{"fruit"}
	_, err = h.puller.Pull(ctx)
	require.NoError(t, err)

	for _, s := range h.source.scopes {
		assert.Equal(t, scope, s)
	}
	kept, err := h.repo.ListCategories(ctx, other)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "bakery", kept[0].Name)
}

func TestPullLargeSnapshotSpansInsertBatches(t *testing.T) {
	h := newPullerHarness(t, nil)
	for i := 0; i < insertBatchSize*2+7; i++ {
		h.source.products = append(h.source.products, product(fmt.Sprintf("p%04d", i), fmt.Sprintf("Item %04d", i), "1.00"))
	}
	result, err := h.puller.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, insertBatchSize*2+7, result.Products)

	rows, err := h.repo.ListProducts(context.Background(), scope)
	require.NoError(t, err)
	assert.Len(t, rows, insertBatchSize*2+7)
}
