package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/packfinderz-pos/api/routes"
	"github.com/angelmondragon/packfinderz-pos/internal/catalog"
	"github.com/angelmondragon/packfinderz-pos/internal/connectivity"
	"github.com/angelmondragon/packfinderz-pos/internal/outbox"
	"github.com/angelmondragon/packfinderz-pos/internal/push"
	"github.com/angelmondragon/packfinderz-pos/internal/syncer"
	"github.com/angelmondragon/packfinderz-pos/pkg/config"
	"github.com/angelmondragon/packfinderz-pos/pkg/db"
	"github.com/angelmondragon/packfinderz-pos/pkg/gateway"
	"github.com/angelmondragon/packfinderz-pos/pkg/logger"
	"github.com/angelmondragon/packfinderz-pos/pkg/metrics"
	"github.com/angelmondragon/packfinderz-pos/pkg/migrate"
	"github.com/angelmondragon/packfinderz-pos/pkg/redis"
)

const serviceName = "possync"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	baseCtx := logg.WithStoreID(context.Background(), cfg.Terminal.StoreID)
	baseCtx = logg.WithTerminalID(baseCtx, cfg.Terminal.TerminalID)

	dbClient, err := db.New(baseCtx, cfg.DB, logg)
	if err != nil {
		logg.Error(baseCtx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(baseCtx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(baseCtx, cfg, logg, dbClient); err != nil {
		logg.Error(baseCtx, "failed to run migrations", err)
		os.Exit(1)
	}

	var (
		guard       syncer.Guard = &syncer.AtomicGuard{}
		redisClient *redis.Client
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(baseCtx, cfg.Redis, logg)
		if err != nil {
			logg.Error(baseCtx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(baseCtx, "error closing redis", err)
			}
		}()
		guard, err = syncer.NewRedisGuard(redisClient, redisClient.SyncLockKey(cfg.Terminal.StoreID, cfg.Terminal.BranchID), cfg.Sync.LockTTL)
		if err != nil {
			logg.Error(baseCtx, "failed to create sync guard", err)
			os.Exit(1)
		}
	}

	gatewayClient, err := gateway.New(gateway.Options{
		BaseURL:    cfg.Gateway.BaseURL,
		Token:      cfg.Gateway.Token,
		TerminalID: cfg.Terminal.TerminalID,
		Timeout:    cfg.Gateway.Timeout,
	})
	if err != nil {
		logg.Error(baseCtx, "failed to create gateway client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	syncMetrics := metrics.NewSyncMetrics(registry)

	scope := gateway.Scope{StoreID: cfg.Terminal.StoreID, BranchID: cfg.Terminal.BranchID}
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService, err := outbox.NewService(outbox.ServiceParams{
		Repository: outboxRepo,
		Logger:     logg,
		StoreID:    scope.StoreID,
		BranchID:   scope.BranchID,
		TerminalID: cfg.Terminal.TerminalID,
	})
	if err != nil {
		logg.Error(baseCtx, "failed to create outbox service", err)
		os.Exit(1)
	}

	worker, err := push.NewWorker(push.WorkerParams{
		Repository: outboxRepo,
		Gateway:    gatewayClient,
		Logger:     logg,
		Metrics:    syncMetrics,
		Backoff: push.Backoff{
			Base:       cfg.Sync.BaseDelay,
			Multiplier: cfg.Sync.Multiplier,
			Max:        cfg.Sync.MaxDelay,
		},
		AuthCooldown:      cfg.Sync.AuthCooldown,
		MaxRejectAttempts: cfg.Sync.MaxRejectAttempts,
		CallTimeout:       cfg.Gateway.Timeout,
	})
	if err != nil {
		logg.Error(baseCtx, "failed to create push worker", err)
		os.Exit(1)
	}

	catalogRepo := catalog.NewRepository(dbClient.DB())
	puller, err := catalog.NewPuller(catalog.PullerParams{
		DB:           dbClient,
		Repository:   catalogRepo,
		Gateway:      gatewayClient,
		Logger:       logg,
		Metrics:      syncMetrics,
		Scope:        scope,
		FetchTimeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		logg.Error(baseCtx, "failed to create catalog puller", err)
		os.Exit(1)
	}

	feed := syncer.NewFeed(0, nil)
	notifier := syncer.MultiNotifier{syncer.LogNotifier{Logger: logg}, feed}

	orchestrator, err := syncer.NewOrchestrator(syncer.OrchestratorParams{
		Pusher:    worker,
		Puller:    puller,
		Guard:     guard,
		Notifier:  notifier,
		Stats:     outboxService,
		Logger:    logg,
		Metrics:   syncMetrics,
		BatchSize: cfg.Sync.BatchSize,
	})
	if err != nil {
		logg.Error(baseCtx, "failed to create orchestrator", err)
		os.Exit(1)
	}

	var (
		observer connectivity.NetworkObserver
		manual   *connectivity.ManualObserver
		probe    *connectivity.ProbeObserver
	)
	if cfg.Connectivity.IsManual() {
		manual = connectivity.NewManualObserver(false)
		observer = manual
	} else {
		probe, err = connectivity.NewProbeObserver(connectivity.ProbeParams{
			Pinger:   gatewayClient,
			Interval: cfg.Connectivity.ProbeInterval,
			Logger:   logg,
		})
		if err != nil {
			logg.Error(baseCtx, "failed to create connectivity probe", err)
			os.Exit(1)
		}
		observer = probe
	}

	monitor, err := connectivity.NewMonitor(connectivity.MonitorParams{
		Observer: observer,
		Interval: cfg.Sync.Interval,
		Trigger:  orchestrator.Trigger,
		Logger:   logg,
		Metrics:  syncMetrics,
	})
	if err != nil {
		logg.Error(baseCtx, "failed to create connectivity monitor", err)
		os.Exit(1)
	}
	unwire := syncer.WireConnectivityNotices(baseCtx, monitor, notifier)
	defer unwire()

	deps := routes.Dependencies{
		Store:        dbClient,
		Outbox:       outboxService,
		Sync:         orchestrator,
		Catalog:      catalog.NewReader(catalogRepo, scope),
		Notices:      feed,
		Connectivity: monitor,
		Gatherer:     registry,
	}
	if manual != nil {
		deps.ManualOnline = manual
	}
	server := &http.Server{
		Addr:              cfg.Admin.Addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Admin.ReadTimeout,
		WriteTimeout:      cfg.Admin.WriteTimeout,
	}

	params := ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Outbox:  outboxService,
		Monitor: monitor,
		Server:  server,
	}
	if redisClient != nil {
		params.Redis = redisClient
	}
	if probe != nil {
		params.Probe = probe
	}
	service, err := NewService(params)
	if err != nil {
		logg.Error(baseCtx, "failed to create sync daemon", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":               cfg.App.Env,
		"admin_addr":        cfg.Admin.Addr,
		"connectivity_mode": cfg.Connectivity.Mode,
		"branch_id":         cfg.Terminal.BranchID,
	})
	logg.Info(ctx, "starting sync daemon")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "sync daemon stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "sync daemon shutting down gracefully")
}
