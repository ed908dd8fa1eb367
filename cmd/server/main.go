package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	_ "github.com/erp/stocksync/docs"
	appinventory "github.com/erp/stocksync/internal/application/inventory"
	appintegration "github.com/erp/stocksync/internal/application/integration"
	"github.com/erp/stocksync/internal/infrastructure/cache"
	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/erp/stocksync/internal/infrastructure/event"
	"github.com/erp/stocksync/internal/infrastructure/logger"
	"github.com/erp/stocksync/internal/infrastructure/marketplace"
	"github.com/erp/stocksync/internal/infrastructure/migration"
	"github.com/erp/stocksync/internal/infrastructure/persistence"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
	"github.com/erp/stocksync/internal/interfaces/http/handler"
	"github.com/erp/stocksync/internal/interfaces/http/middleware"
	"github.com/erp/stocksync/internal/interfaces/http/router"
)

//	@title			Stocksync API
//	@version		1.0
//	@description	Multi-channel inventory ledger, reservations and marketplace sync
//
//	@contact.name	API Support
//	@contact.url	https://github.com/erp/stocksync
//
//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	tel, log, err := setupTelemetry(ctx, cfg)
	if err != nil {
		panic("Failed to initialize telemetry: " + err.Error())
	}
	defer logger.Sync(log)
	defer tel.Shutdown(context.Background(), log)

	instanceID := newInstanceID()
	log.Info("Starting stocksync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("instance_id", instanceID),
	)

	// Database
	if cfg.Database.Driver == persistence.DriverPostgres && cfg.Database.AutoMigrate {
		if err := applyMigrations(cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", db.Driver()))

	meter := tel.meters.Meter("stocksync")
	if cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL && !cfg.IsProduction()
		if cfg.Telemetry.DBSlowQueryThresh > 0 {
			dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
		}
		if db.Driver() == persistence.DriverSQLite {
			dbTracing.DBSystem = "sqlite"
		}
		plugin, err := telemetry.NewDBTracingPlugin(dbTracing, meter, log)
		if err != nil {
			log.Fatal("Failed to create database tracing plugin", zap.Error(err))
		}
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing plugin", zap.Error(err))
		}
	}

	stockMetrics, err := telemetry.NewStockMetrics(telemetry.StockMetricsConfig{
		Meter:           meter,
		Logger:          log,
		GaugeProvider:   telemetry.NewGormStockGaugeProvider(db.DB),
		CollectInterval: cfg.Telemetry.GaugeCollectInterval,
	})
	if err != nil {
		log.Fatal("Failed to create stock metrics", zap.Error(err))
	}
	if tel.meters.IsEnabled() {
		stockMetrics.StartPeriodicCollection(ctx)
		defer stockMetrics.Stop()
	}

	// Shared state: sweep status, job leases and alert dedup
	store, err := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	).CreateStore()
	if err != nil {
		log.Fatal("Failed to create state store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// Repositories
	stockUnitRepo := persistence.NewGormStockUnitRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	productRepo := persistence.NewGormCanonicalProductRepository(db.DB)
	syncTaskRepo := persistence.NewGormSyncTaskRepository(db.DB)
	locker := appinventory.NewKeyedUnitLocker(cfg.Reservation.LockTimeout)
	txScope := persistence.NewGormTransactionScope(db.DB, persistence.WithRowLockTimeout(locker.Timeout()))

	// Marketplaces
	registry, err := marketplace.NewRegistryFromConfig(cfg.Platforms, log)
	if err != nil {
		log.Fatal("Failed to configure marketplace adapters", zap.Error(err))
	}

	// Event bus; alerts leave the process through Kafka
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.Kafka.Enabled {
		alerts := event.NewAlertHandler(event.NewKafkaWriter(cfg.Kafka), cfg.App.Name, cfg.Kafka.WriteTimeout, log)
		defer func() {
			if err := alerts.Close(); err != nil {
				log.Error("Error closing alert writer", zap.Error(err))
			}
		}()
		eventBus.Subscribe(
			event.NewDedupHandler(alerts, store, log,
				event.WithKeyFunc(event.AlertKey),
				event.WithWindow(cfg.Kafka.DedupWindow),
			),
			event.AlertEventTypes...,
		)
		log.Info("Alert forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.AlertTopic),
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Application services
	enqueuer := appintegration.NewSyncEnqueuer(log)

	ledgerService := appinventory.NewLedgerService(stockUnitRepo, ledgerRepo, reservationRepo, txScope, locker, log)
	ledgerService.SetEventPublisher(eventBus)
	ledgerService.SetSyncEnqueuer(enqueuer)
	ledgerService.SetStockMetrics(stockMetrics)
	ledgerService.SetHistoryPageSize(cfg.Ledger.HistoryPageSize)

	reservationService := appinventory.NewReservationService(stockUnitRepo, reservationRepo, txScope, locker, log)
	reservationService.SetEventPublisher(eventBus)
	reservationService.SetSyncEnqueuer(enqueuer)
	reservationService.SetStockMetrics(stockMetrics)
	reservationService.SetDefaultTTL(cfg.Reservation.DefaultTTL)

	expiryService := appinventory.NewExpiryService(reservationRepo, reservationService, log)
	expiryService.SetBatchSize(cfg.Sweeper.BatchSize)
	expiryService.SetStockMetrics(stockMetrics)

	reconcilerService := appintegration.NewReconcilerService(
		productRepo, stockUnitRepo, txScope, registry,
		appintegration.NewMatcher(cfg.Reconciler.FuzzyThreshold), enqueuer, log,
	)
	reconcilerService.SetEventPublisher(eventBus)
	reconcilerService.SetStockMetrics(stockMetrics)
	reconcilerService.SetDriftTolerance(cfg.Reconciler.DriftTolerance)
	reconcilerService.SetImportInitialStock(cfg.Reconciler.ImportInitialStock)
	reconcilerService.SetMergeGuard(cache.NewLeaseLock(store, "merge", instanceID,
		cfg.Reconciler.MergeLockTTL, cfg.Reconciler.MergeLockWait))
	if cfg.Reconciler.DefaultOwnerID != "" {
		ownerID, err := uuid.Parse(cfg.Reconciler.DefaultOwnerID)
		if err != nil {
			log.Fatal("Invalid reconciler default owner ID", zap.Error(err))
		}
		reconcilerService.SetDefaultOwner(ownerID)
	}

	dispatchService := appintegration.NewDispatchService(
		syncTaskRepo, productRepo, stockUnitRepo, txScope, registry,
		appintegration.DispatchConfig{
			MaxAttempts:   cfg.Dispatcher.MaxAttempts,
			BaseBackoff:   cfg.Dispatcher.BaseBackoff,
			MaxBackoff:    cfg.Dispatcher.MaxBackoff,
			BatchSize:     cfg.Dispatcher.BatchSize,
			RatePerSecond: cfg.Dispatcher.RatePerSecond,
			Burst:         cfg.Dispatcher.Burst,
			StaleAfter:    cfg.Dispatcher.StaleAfter,
		},
		log,
	)
	dispatchService.SetEventPublisher(eventBus)
	dispatchService.SetStockMetrics(stockMetrics)

	// Background workers
	runner := scheduler.NewRunner(log)

	var sweepTrigger *scheduler.IntervalTrigger
	if cfg.Sweeper.Enabled {
		job := scheduler.NewLeasedJob(
			scheduler.NewExpirySweepJob(expiryService, store, instanceID, log),
			store, scheduler.ExpirySweepJobName, instanceID, cfg.Sweeper.LockTTL, log,
		)
		sweepTrigger = mustTrigger(log, scheduler.TriggerConfig{Interval: cfg.Sweeper.Interval, RunOnStart: true}, job)
		runner.Add(scheduler.ExpirySweepJobName, sweepTrigger)
	}
	sweeperMonitor := scheduler.NewSweeperMonitor(store, sweepTrigger, cfg.Sweeper.Enabled, cfg.Sweeper.Interval, instanceID)

	if cfg.Reconciler.Enabled {
		pull := scheduler.NewLeasedJob(scheduler.NewPullJob(reconcilerService, log),
			store, scheduler.PullJobName, instanceID, cfg.Reconciler.PullInterval, log)
		runner.Add(scheduler.PullJobName, mustTrigger(log, scheduler.TriggerConfig{Interval: cfg.Reconciler.PullInterval}, pull))

		reconcile := scheduler.NewLeasedJob(scheduler.NewReconcileJob(reconcilerService),
			store, scheduler.ReconcileJobName, instanceID, cfg.Reconciler.ReconcileInterval, log)
		runner.Add(scheduler.ReconcileJobName, mustTrigger(log, scheduler.TriggerConfig{Interval: cfg.Reconciler.ReconcileInterval}, reconcile))
	}

	if cfg.Dispatcher.Enabled {
		dispatcherConfig := scheduler.DefaultSyncDispatcherConfig()
		if cfg.Dispatcher.Workers > 0 {
			dispatcherConfig.Workers = cfg.Dispatcher.Workers
		}
		if cfg.Dispatcher.PollInterval > 0 {
			dispatcherConfig.PollInterval = cfg.Dispatcher.PollInterval
		}
		dispatcher, err := scheduler.NewSyncDispatcher(dispatcherConfig, dispatchService, log)
		if err != nil {
			log.Fatal("Failed to create sync dispatcher", zap.Error(err))
		}
		runner.Add("sync-dispatcher", dispatcher)
	}

	if err := runner.Start(ctx); err != nil {
		log.Fatal("Failed to start background workers", zap.Error(err))
	}
	log.Info("Background workers started", zap.Strings("components", runner.Names()))

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	var rateLimiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitPerSecond > 0 {
		rateLimiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitPerSecond, cfg.HTTP.RateLimitBurst, 0)
		go rateLimiter.Run(ctx)
		log.Info("Rate limiting enabled",
			zap.Float64("per_second", cfg.HTTP.RateLimitPerSecond),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	var sweepRunner handler.SweepRunner
	if sweepTrigger != nil {
		sweepRunner = sweepTrigger
	}

	health := handler.NewHealthHandler(2*time.Second).
		AddCheck("database", func(context.Context) error { return db.Ping() }).
		AddCheck("event_bus", func(context.Context) error {
			if !eventBus.Running() {
				return errors.New("event bus stopped")
			}
			return nil
		})

	engine := router.NewEngine(router.EngineConfig{
		HTTP:             cfg.HTTP,
		Swagger:          cfg.Swagger,
		Logger:           log,
		ServiceName:      cfg.Telemetry.ServiceName,
		TracingEnabled:   cfg.Telemetry.Enabled,
		ProfilingEnabled: cfg.Telemetry.ProfilingEnabled,
		MeterProvider:    tel.meters,
		RateLimiter:      rateLimiter,
		Health:           health,
		Handlers: router.Handlers{
			StockUnit:   handler.NewStockUnitHandler(ledgerService, reservationService),
			Reservation: handler.NewReservationHandler(reservationService),
			Product:     handler.NewProductHandler(reconcilerService),
			SyncTask:    handler.NewSyncTaskHandler(dispatchService),
			Sweeper:     handler.NewSweeperHandler(sweeperMonitor, sweepRunner),
			System: handler.NewSystemHandler(handler.SystemInfo{
				Version:     cfg.Telemetry.ServiceVersion,
				Environment: cfg.App.Env,
				InstanceID:  instanceID,
				Platforms:   platformCodes(cfg.EnabledPlatforms()),
			}),
		},
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := runner.Stop(shutdownCtx); err != nil {
		log.Error("Background workers did not stop cleanly", zap.Error(err))
	}
	stop()

	log.Info("Server exited gracefully")
}

// applyMigrations runs the embedded schema on a dedicated connection, which the migrator closes
func applyMigrations(cfg config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	return migration.UpEmbedded(sqlDB, log)
}

func mustTrigger(log *zap.Logger, cfg scheduler.TriggerConfig, job scheduler.Job) *scheduler.IntervalTrigger {
	t, err := scheduler.NewIntervalTrigger(cfg, job, log)
	if err != nil {
		log.Fatal("Invalid job schedule", zap.String("job", job.Name()), zap.Error(err))
	}
	return t
}

func platformCodes(platforms []config.PlatformConfig) []string {
	codes := make([]string, 0, len(platforms))
	for _, p := range platforms {
		codes = append(codes, strings.ToUpper(p.Code))
	}
	return codes
}

// newInstanceID names this process in leases and sweep state
func newInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "stocksync"
	}
	return host + "-" + uuid.NewString()[:8]
}
