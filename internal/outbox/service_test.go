package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/packfinderz-pos/internal/sales"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

func newService(t *testing.T) (*Service, *Repository) {
	t.Helper()
	repo := newRepo(t)
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Logger:     logger.Nop(),
		StoreID:    "store-1",
		BranchID:   "branch-1",
		TerminalID: "till-3",
		Now:        func() time.Time { return baseTime },
		NewKey:     func() string { return "fixed-key" },
	})
	require.NoError(t, err)
	return svc, repo
}

func sampleSale() sales.Sale {
	price := decimal.RequireFromString("4.00")
	return sales.Sale{
		ReceiptNumber: "R-100",
		CashierID:     "cashier-1",
		Currency:      "USD",
		Lines:         []sales.Line{{ProductID: "p1", Name: "Tea", Quantity: 1, UnitPrice: price, LineTotal: price}},
		Payments:      []sales.Payment{{Method: "card", Amount: price}},
		Subtotal:      price,
		Total:         price,
		SoldAt:        baseTime,
	}
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop(), StoreID: "s", BranchID: "b"})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Repository: newRepo(t), StoreID: "s", BranchID: "b"})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Repository: newRepo(t), Logger: logger.Nop()})
	require.Error(t, err)
}

func TestEnqueueStoresPendingSaleWithScope(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, sampleSale())
	require.NoError(t, err)
	assert.NotZero(t, entry.ID)
	assert.Equal(t, "fixed-key", entry.IdempotencyKey)
	assert.Equal(t, enums.OutboxStatusPending, entry.Status)
	assert.Zero(t, entry.RetryCount)
	assert.Nil(t, entry.NextRetryAt)

	stored, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(baseTime))

	var body sales.Sale
	require.NoError(t, json.Unmarshal(stored.Payload, &body))
	assert.Equal(t, "store-1", body.StoreID)
	assert.Equal(t, "branch-1", body.BranchID)
	assert.Equal(t, "till-3", body.TerminalID)
	assert.True(t, body.Total.Equal(decimal.RequireFromString("4.00")))
}

func TestEnqueueRejectsInvalidSale(t *testing.T) {
	svc, repo := newService(t)
	sale := sampleSale()
	sale.Lines = nil

	_, err := svc.Enqueue(context.Background(), sale)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Zero(t, counts[enums.OutboxStatusPending])
}

func TestEnqueueDuplicateKeyIsConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Enqueue(ctx, sampleSale())
	require.NoError(t, err)

	_, err = svc.Enqueue(ctx, sampleSale())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
}

func TestServiceDeleteAndRequeue(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()

	busy := seedEntry(t, repo, 1, func(e *models.OutboxEntry) { e.Status = enums.OutboxStatusSyncing })
	rejected := seedEntry(t, repo, 2, func(e *models.OutboxEntry) {
		e.Status = enums.OutboxStatusRejected
		e.RetryCount = 5
	})

	err := svc.Delete(ctx, busy.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	err = svc.Delete(ctx, 999)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	requeued, err := svc.Requeue(ctx, rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusPending, requeued.Status)
	assert.Equal(t, 5, requeued.RetryCount)

	_, err = svc.Requeue(ctx, rejected.ID)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())

	require.NoError(t, svc.Delete(ctx, rejected.ID))
}

func TestServiceListAndStats(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	seedEntry(t, repo, 1, nil)
	seedEntry(t, repo, 2, func(e *models.OutboxEntry) { e.Status = enums.OutboxStatusFailed })

	rows, err := svc.List(ctx, ListFilter{Status: enums.OutboxStatusFailed})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, err = svc.List(ctx, ListFilter{Status: enums.OutboxStatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = svc.List(ctx, ListFilter{Status: "lost"})
	assert.True(t, pkgerrors.IsValidation(err))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[enums.OutboxStatusPending])
	assert.EqualValues(t, 1, stats[enums.OutboxStatusFailed])
}

func TestRecoverStaleResetsSyncing(t *testing.T) {
	svc, repo := newService(t)
	ctx := context.Background()
	entry := seedEntry(t, repo, 1, func(e *models.OutboxEntry) { e.Status = enums.OutboxStatusSyncing })

	n, err := svc.RecoverStale(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stored, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxStatusPending, stored.Status)
}
