package push

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/packfinderz-pos/internal/outbox"
	"github.com/angelmondragon/packfinderz-pos/pkg/db/models"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-pos/pkg/errors"
	"github.com/angelmondragon/packfinderz-pos/pkg/gateway"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
	"github.com/angelmondragon/packfinderz-pos/pkg/metrics"
)

const (
	defaultBatchSize    = 10
	defaultCallTimeout  = 30 * time.Second
	defaultAuthCooldown = 10 * time.Minute
	maxLastErrorLen     = 512
)

type outboxStore interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]models.OutboxEntry, error)
	MarkSyncing(ctx context.Context, id uint64) (bool, error)
	DeleteSynced(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, update outbox.FailureUpdate) error
}

type orderSender interface {
	CreateOrder(ctx context.Context, payload json.RawMessage, idempotencyKey string) (*gateway.OrderRecord, error)
}

type WorkerParams struct {
	Repository   outboxStore
	Gateway      orderSender
	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	Backoff      Backoff
	AuthCooldown time.Duration
	// MaxRejectAttempts moves an entry to rejected after this many validation failures. Zero disables it.
	MaxRejectAttempts int
	CallTimeout       time.Duration
	Now               func() time.Time
}

// FlushResult summarises one pass over the due entries.
type FlushResult struct {
	Attempted   int  `json:"attempted"`
	Completed   int  `json:"completed"`
	Failed      int  `json:"failed"`
	Rejected    int  `json:"rejected"`
	AuthBlocked bool `json:"auth_blocked"`
}

// Worker pushes queued sales to the server one at a time.
type Worker struct {
	repo         outboxStore
	gateway      orderSender
	logg         *logger.Logger
	metrics      *metrics.SyncMetrics
	backoff      Backoff
	authCooldown time.Duration
	maxRejects   int
	callTimeout  time.Duration
	now          func() time.Time
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("gateway client is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.MaxRejectAttempts < 0 {
		return nil, errors.New("max reject attempts must not be negative")
	}

	backoff := params.Backoff
	if backoff.Base <= 0 {
		backoff = DefaultBackoff()
	}
	cooldown := params.AuthCooldown
	if cooldown <= 0 {
		cooldown = defaultAuthCooldown
	}
	timeout := params.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &Worker{
		repo:         params.Repository,
		gateway:      params.Gateway,
		logg:         params.Logger,
		metrics:      params.Metrics,
		backoff:      backoff,
		authCooldown: cooldown,
		maxRejects:   params.MaxRejectAttempts,
		callTimeout:  timeout,
		now:          now,
	}, nil
}

// Flush pushes up to batchSize due entries in creation order. A storage failure stops the
// flush and is returned; remote failures are recorded on the entry and never returned.
func (w *Worker) Flush(ctx context.Context, batchSize int) (FlushResult, error) {
	var result FlushResult
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	defer w.record(&result)

	entries, err := w.repo.FetchDue(ctx, w.now().UTC(), batchSize)
	if err != nil {
		return result, pkgerrors.Storage(err, "fetch due outbox entries")
	}

	for _, entry := range entries {
		stop, err := w.pushOne(ctx, entry, &result)
		if err != nil {
			return result, err
		}
		if stop {
			break
		}
	}
	return result, nil
}

func (w *Worker) pushOne(ctx context.Context, entry models.OutboxEntry, result *FlushResult) (bool, error) {
	claimed, err := w.repo.MarkSyncing(ctx, entry.ID)
	if err != nil {
		return false, pkgerrors.Storage(err, "mark outbox entry syncing")
	}
	logCtx := w.logg.WithFields(ctx, map[string]any{
		"outbox_id":       entry.ID,
		"idempotency_key": entry.IdempotencyKey,
		"retry_count":     entry.RetryCount,
	})
	if !claimed {
		w.logg.Debug(logCtx, "outbox entry claimed elsewhere, skipping")
		return false, nil
	}
	result.Attempted++

	callCtx, cancel := context.WithTimeout(ctx, w.callTimeout)
	record, sendErr := w.gateway.CreateOrder(callCtx, entry.Payload, entry.IdempotencyKey)
	cancel()

	// once claimed, the outcome is written even if the caller gave up
	writeCtx := context.WithoutCancel(ctx)
	if sendErr == nil {
		if err := w.repo.DeleteSynced(writeCtx, entry.ID); err != nil {
			return false, pkgerrors.Storage(err, "delete synced outbox entry")
		}
		result.Completed++
		if record != nil {
			logCtx = w.logg.WithField(logCtx, "order_id", record.ID)
		}
		w.logg.Info(logCtx, "sale synced")
		return false, nil
	}

	update, stop := w.failureFor(entry, sendErr)
	if err := w.repo.MarkFailed(writeCtx, entry.ID, update); err != nil {
		return false, pkgerrors.Storage(err, "record outbox failure")
	}

	switch {
	case update.Status == enums.OutboxStatusRejected:
		result.Rejected++
	default:
		result.Failed++
	}
	if stop {
		result.AuthBlocked = true
	}

	fields := map[string]any{
		"retry_count": update.RetryCount,
		"status":      update.Status,
		"error_class": pkgerrors.Classify(sendErr).String(),
		"error":       update.LastError,
	}
	if update.NextRetryAt != nil {
		fields["next_retry_at"] = update.NextRetryAt.Format(time.RFC3339)
	}
	w.logg.Warn(w.logg.WithFields(logCtx, fields), "sale push failed")
	return stop, nil
}

// failureFor decides the stored state after a failed push and whether the batch must stop.
func (w *Worker) failureFor(entry models.OutboxEntry, err error) (outbox.FailureUpdate, bool) {
	now := w.now().UTC()
	retry := entry.RetryCount + 1
	update := outbox.FailureUpdate{
		Status:     enums.OutboxStatusFailed,
		RetryCount: retry,
		LastError:  truncate(err.Error(), maxLastErrorLen),
	}

	switch pkgerrors.Classify(err) {
	case pkgerrors.ClassAuth:
		next := now.Add(w.authCooldown)
		update.NextRetryAt = &next
		return update, true
	case pkgerrors.ClassValidation:
		if w.maxRejects > 0 && retry >= w.maxRejects {
			update.Status = enums.OutboxStatusRejected
			return update, false
		}
	}

	next := now.Add(w.backoff.Delay(retry))
	update.NextRetryAt = &next
	return update, false
}

func (w *Worker) record(result *FlushResult) {
	w.metrics.AddPushed("completed", result.Completed)
	w.metrics.AddPushed("failed", result.Failed)
	w.metrics.AddPushed("rejected", result.Rejected)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
