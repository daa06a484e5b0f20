package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-pos/internal/sales"
	"github.com/angelmondragon/packfinderz-pos/pkg/db"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

const defaultListLimit = 100

type store interface {
	Insert(ctx context.Context, entry *models.OutboxEntry) error
	Get(ctx context.Context, id uint64) (*models.OutboxEntry, error)
	List(ctx context.Context, filter ListFilter) ([]models.OutboxEntry, error)
	Delete(ctx context.Context, id uint64) (bool, error)
	Requeue(ctx context.Context, id uint64) (bool, error)
	RecoverSyncing(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[enums.OutboxStatus]int64, error)
}

type ServiceParams struct {
	Repository store
	Logger     *logger.Logger
	StoreID    string
	BranchID   string
	TerminalID string
	Now        func() time.Time
	NewKey     func() string
}

// Service is the register-facing side of the outbox.
type Service struct {
	repo       store
	logg       *logger.Logger
	storeID    string
	branchID   string
	terminalID string
	now        func() time.Time
	newKey     func() string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.StoreID == "" || params.BranchID == "" {
		return nil, errors.New("store and branch are required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	newKey := params.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Service{
		repo:       params.Repository,
		logg:       params.Logger,
		storeID:    params.StoreID,
		branchID:   params.BranchID,
		terminalID: params.TerminalID,
		now:        now,
		newKey:     newKey,
	}, nil
}

// Enqueue stamps the sale with the terminal scope, validates it and stores it as pending.
// The returned entry carries the idempotency key used for every later push of this sale.
func (s *Service) Enqueue(ctx context.Context, sale sales.Sale) (*models.OutboxEntry, error) {
	sale.StoreID = s.storeID
	sale.BranchID = s.branchID
	if sale.TerminalID == "" {
		sale.TerminalID = s.terminalID
	}
	if err := sale.Validate(); err != nil {
		return nil, err
	}
	payload, err := sale.Payload()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode sale")
	}

	now := s.now().UTC()
	entry := &models.OutboxEntry{
		IdempotencyKey: s.newKey(),
		StoreID:        s.storeID,
		BranchID:       s.branchID,
		Payload:        payload,
		Status:         enums.OutboxStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		if db.IsUniqueViolation(err, "idempotency_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "idempotency key already queued")
		}
		return nil, pkgerrors.Storage(err, "store sale")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":       entry.ID,
		"idempotency_key": entry.IdempotencyKey,
		"receipt_number":  sale.ReceiptNumber,
	})
	s.logg.Info(logCtx, "sale queued")
	return entry, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.OutboxEntry, error) {
	entry, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("outbox entry %d not found", id))
	}
	if err != nil {
		return nil, pkgerrors.Storage(err, "load outbox entry")
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]models.OutboxEntry, error) {
	// completed entries are deleted, never stored
	if filter.Status == enums.OutboxStatusCompleted {
		return []models.OutboxEntry{}, nil
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown outbox status").
			WithDetails(map[string]string{"status": string(filter.Status)})
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Storage(err, "list outbox")
	}
	return rows, nil
}

// Delete discards an entry on explicit operator request. Entries being pushed cannot be removed.
func (s *Service) Delete(ctx context.Context, id uint64) error {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status == enums.OutboxStatusSyncing {
		return pkgerrors.New(pkgerrors.CodeConflict, "entry is being synced")
	}
	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Storage(err, "delete outbox entry")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeConflict, "entry is being synced")
	}
	s.logg.Warn(s.logg.WithOutboxID(ctx, id), "outbox entry discarded")
	return nil
}

// Requeue returns a failed or rejected entry to pending, keeping its retry count.
func (s *Service) Requeue(ctx context.Context, id uint64) (*models.OutboxEntry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	moved, err := s.repo.Requeue(ctx, id)
	if err != nil {
		return nil, pkgerrors.Storage(err, "requeue outbox entry")
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("entry is %s", entry.Status))
	}
	s.logg.Info(s.logg.WithOutboxID(ctx, id), "outbox entry requeued")
	return s.Get(ctx, id)
}

// Stats counts stored entries per status.
func (s *Service) Stats(ctx context.Context) (map[enums.OutboxStatus]int64, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Storage(err, "count outbox")
	}
	return counts, nil
}

// RecoverStale resets entries left in syncing by a process that stopped mid-push.
// Call it before the first sync pass.
func (s *Service) RecoverStale(ctx context.Context) (int64, error) {
	n, err := s.repo.RecoverSyncing(ctx)
	if err != nil {
		return 0, pkgerrors.Storage(err, "recover syncing entries")
	}
	if n > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "recovered", n), "stale syncing entries reset to pending")
	}
	return n, nil
}
