package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-pos/internal/catalog"
	"github.com/angelmondragon/packfinderz-pos/internal/push"
	"github.com/angelmondragon/packfinderz-pos/pkg/enums"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
	"github.com/angelmondragon/packfinderz-pos/pkg/metrics"
)

const defaultBatchSize = 10

type pusher interface {
	Flush(ctx context.Context, batchSize int) (push.FlushResult, error)
}

type puller interface {
	Pull(ctx context.Context) (catalog.PullResult, error)
}

type statsSource interface {
	Stats(ctx context.Context) (map[enums.OutboxStatus]int64, error)
}

type OrchestratorParams struct {
	Pusher    pusher
	Puller    puller
	Guard     Guard
	Notifier  Notifier
	Stats     statsSource
	Logger    *logger.Logger
	Metrics   *metrics.SyncMetrics
	BatchSize int
	Now       func() time.Time
}

// PassResult describes one SyncData call.
type PassResult struct {
	Skipped   bool               `json:"skipped"`
	Push      push.FlushResult   `json:"push"`
	Pull      catalog.PullResult `json:"pull"`
	PushError string             `json:"push_error,omitempty"`
	PullError string             `json:"pull_error,omitempty"`
	Duration  time.Duration      `json:"duration_ns"`
}

// Orchestrator runs push then pull as one single-flight pass.
type Orchestrator struct {
	pusher    pusher
	puller    puller
	guard     Guard
	notifier  Notifier
	stats     statsSource
	logg      *logger.Logger
	metrics   *metrics.SyncMetrics
	batchSize int
	now       func() time.Time
}

func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Pusher == nil {
		return nil, errors.New("pusher is required")
	}
	if params.Puller == nil {
		return nil, errors.New("puller is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	guard := params.Guard
	if guard == nil {
		guard = &AtomicGuard{}
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: params.Logger}
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		pusher:    params.Pusher,
		puller:    params.Puller,
		guard:     guard,
		notifier:  notifier,
		stats:     params.Stats,
		logg:      params.Logger,
		metrics:   params.Metrics,
		batchSize: batch,
		now:       now,
	}, nil
}

// SyncData pushes due sales and then refreshes the catalog. A call made while another
// pass runs returns at once with Skipped set. A started pass ignores cancellation of ctx.
// Failures are logged and reported in the result, never returned.
func (o *Orchestrator) SyncData(ctx context.Context) PassResult {
	ctx = context.WithoutCancel(ctx)

	acquired, err := o.guard.TryAcquire(ctx)
	if err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "sync guard unavailable, skipping pass")
	}
	if !acquired {
		o.metrics.ObservePass("skipped", 0)
		o.logg.Debug(ctx, "sync pass already running")
		return PassResult{Skipped: true}
	}
	defer func() {
		if err := o.guard.Release(ctx); err != nil {
			o.logg.Error(ctx, "release sync guard", err)
		}
	}()

	started := o.now()
	result := PassResult{}
	outcome := "completed"

	var pushed push.FlushResult
	err = recovered("push", func() (err error) {
		pushed, err = o.pusher.Flush(ctx, o.batchSize)
		return err
	})
	result.Push = pushed
	if err != nil {
		outcome = "partial"
		result.PushError = err.Error()
		o.logg.Error(ctx, "outbox push failed", err)
	}
	if pushed.Completed > 0 {
		o.notifier.Notify(ctx, SyncedNotice(pushed.Completed))
	}
	if pushed.AuthBlocked {
		o.notifier.Notify(ctx, Notice{Level: NoticeWarning, Message: NoticeSignInRequired})
	}

	var pulled catalog.PullResult
	err = recovered("pull", func() (err error) {
		pulled, err = o.puller.Pull(ctx)
		return err
	})
	result.Pull = pulled
	if err != nil {
		outcome = "partial"
		result.PullError = err.Error()
		o.logg.Error(ctx, "catalog pull failed", err)
	}

	result.Duration = o.now().Sub(started)
	o.metrics.ObservePass(outcome, result.Duration)
	o.refreshDepth(ctx)

	o.logg.Info(o.logg.WithFields(ctx, map[string]any{
		"outcome":     outcome,
		"attempted":   pushed.Attempted,
		"completed":   pushed.Completed,
		"failed":      pushed.Failed,
		"rejected":    pushed.Rejected,
		"duration_ms": result.Duration.Milliseconds(),
	}), "sync pass finished")
	return result
}

func (o *Orchestrator) refreshDepth(ctx context.Context) {
	if o.stats == nil {
		return
	}
	counts, err := o.stats.Stats(ctx)
	if err != nil {
		o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "outbox stats unavailable")
		return
	}
	depth := make(map[string]int64, len(counts))
	for status, n := range counts {
		depth[status.String()] = n
	}
	o.metrics.SetOutboxDepth(depth)
}

func recovered(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", step, r)
		}
	}()
	return fn()
}

// Trigger adapts SyncData to the connectivity monitor.
func (o *Orchestrator) Trigger(ctx context.Context) {
	o.SyncData(ctx)
}
