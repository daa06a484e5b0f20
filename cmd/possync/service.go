package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

type pinger interface {
	Ping(context.Context) error
}

type staleRecoverer interface {
	RecoverStale(ctx context.Context) (int64, error)
}

type runner interface {
	Run(ctx context.Context) error
}

type adminServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type ServiceParams struct {
	Logger *logger.Logger
	DB     pinger
	// Redis is optional; when set it must answer before the daemon starts.
	Redis   pinger
	Outbox  staleRecoverer
	Monitor runner
	// Probe drives reachability checks in probe mode.
	Probe           runner
	Server          adminServer
	ShutdownTimeout time.Duration
}

// Service owns the daemon lifecycle: readiness, crash recovery, then the monitor and admin API.
type Service struct {
	logg            *logger.Logger
	db              pinger
	redis           pinger
	outbox          staleRecoverer
	monitor         runner
	probe           runner
	server          adminServer
	shutdownTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service is required")
	}
	if params.Monitor == nil {
		return nil, errors.New("connectivity monitor is required")
	}
	timeout := params.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &Service{
		logg:            params.Logger,
		db:              params.DB,
		redis:           params.Redis,
		outbox:          params.Outbox,
		monitor:         params.Monitor,
		probe:           params.Probe,
		server:          params.Server,
		shutdownTimeout: timeout,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if s.redis != nil {
		if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
			return err
		}
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is cancelled or a component fails. Entries a previous process left
// in syncing are returned to pending before the first pass can start.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	recovered, err := s.outbox.RecoverStale(ctx)
	if err != nil {
		return fmt.Errorf("recover stale outbox entries: %w", err)
	}
	if recovered > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "recovered", recovered), "requeued entries interrupted mid-push")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(s.monitor.Run(gctx))
	})
	if s.probe != nil {
		g.Go(func() error {
			return ignoreCanceled(s.probe.Run(gctx))
		})
	}

	var shutdownErr error
	if s.server != nil {
		g.Go(func() error {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("shutdown admin server: %w", err)
			}
			return nil
		})
	}

	s.logg.Info(ctx, "sync daemon running")
	err = g.Wait()
	return multierr.Combine(err, shutdownErr)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
