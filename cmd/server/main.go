package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/subsync/backend/internal/application/checkout"
	"github.com/subsync/backend/internal/application/subscription"
	appsync "github.com/subsync/backend/internal/application/sync"
	"github.com/subsync/backend/internal/domain/billing"
	"github.com/subsync/backend/internal/infrastructure/auth"
	infrabilling "github.com/subsync/backend/internal/infrastructure/billing"
	"github.com/subsync/backend/internal/infrastructure/cache"
	"github.com/subsync/backend/internal/infrastructure/config"
	"github.com/subsync/backend/internal/infrastructure/logger"
	"github.com/subsync/backend/internal/infrastructure/notify"
	"github.com/subsync/backend/internal/infrastructure/persistence"
	"github.com/subsync/backend/internal/infrastructure/scheduler"
	"github.com/subsync/backend/internal/interfaces/http/handler"
	"github.com/subsync/backend/internal/interfaces/http/middleware"
	"github.com/subsync/backend/internal/interfaces/http/router"
	"github.com/subsync/backend/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting storefront backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing database", zap.Error(err))
		}
	}()

	if err := persistence.AutoMigrate(db.DB); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Repositories and transaction boundary.
	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	snapshotRepo := persistence.NewGormSnapshotRepository(db.DB)
	txm := persistence.NewGormTransactionManager(db.DB)

	// Checkout session store. Redis keeps payment tokens shared across
	// instances; without a configured host a single-process store is used.
	var sessions billing.SessionStore
	if cfg.Redis.Host != "" {
		store, err := cache.NewRedisSessionStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		sessions = store
		log.Info("redis session store connected", zap.String("host", cfg.Redis.Host))
	} else {
		sessions = cache.NewInMemorySessionStore()
		log.Warn("redis host not configured, using in-memory session store")
	}

	gateway, err := infrabilling.NewGateway(&infrabilling.ProviderConfig{
		APIBaseURL:      cfg.Provider.APIBaseURL,
		Username:        cfg.Provider.Username,
		Password:        cfg.Provider.Password,
		CampaignID:      cfg.Provider.CampaignID,
		StraightSaleSKU: cfg.Provider.StraightSaleSKU,
		TimeoutSeconds:  cfg.Provider.TimeoutSeconds,
		MaxRetries:      cfg.Provider.MaxRetries,
		PageSize:        cfg.Provider.PageSize,
	}, log)
	if err != nil {
		log.Fatal("failed to initialize provider gateway", zap.Error(err))
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Email.Enabled {
		notifier = notify.NewSMTPMailer(cfg.Email, log)
	}

	// Application services.
	mirror := appsync.NewCampaignMirror(gateway, snapshotRepo, cfg.Provider.CampaignID, log)
	productSync := appsync.NewProductSync(gateway, productRepo, snapshotRepo, cfg.Provider.StraightSaleSKU, log)
	offerBinding := appsync.NewOfferBinding(gateway, log)
	checkoutService := checkout.NewService(
		gateway, orderRepo, productRepo, snapshotRepo, sessions, txm, notifier,
		cfg.Provider.CampaignID, cfg.Provider.StraightSaleSKU, log,
	)
	subscriptionService := subscription.NewService(gateway, orderRepo, subscription.ActionPolicy{
		AllowRecurringDateChange: cfg.Subscription.AllowRecurringDateChange,
		AllowBillingModelChange:  cfg.Subscription.AllowBillingModelChange,
		AllowPause:               cfg.Subscription.AllowPause,
		AllowCancel:              cfg.Subscription.AllowCancel,
	}, log)
	reconciler := subscription.NewShipmentReconciler(gateway, orderRepo, log)
	runner := jobs.NewRunner(mirror, productSync, offerBinding, reconciler, notifier, log)

	jwtService := auth.NewJWTService(cfg.JWT)

	var sched *scheduler.Scheduler
	if cfg.Sync.ScheduleEnabled {
		runJob := func(job string) func(ctx context.Context) error {
			return func(ctx context.Context) error {
				result := runner.Run(ctx, job, nil)
				return result.Err
			}
		}
		sched = scheduler.NewScheduler(scheduler.DefaultConfig(), []scheduler.Entry{
			{Name: jobs.JobCampaignMirror, Interval: cfg.Sync.MirrorInterval, Run: runJob(jobs.JobCampaignMirror)},
			{Name: jobs.JobProductSync, Interval: cfg.Sync.ProductSyncInterval, Run: runJob(jobs.JobProductSync)},
			{Name: jobs.JobShipmentSync, Interval: cfg.Sync.ShipmentInterval, Run: runJob(jobs.JobShipmentSync)},
		}, log)
		if err := sched.Start(context.Background()); err != nil {
			log.Fatal("failed to start scheduler", zap.Error(err))
		}
	}

	middleware.SetupValidator()

	engine := router.New(cfg, log, jwtService, router.Handlers{
		System:       handler.NewSystemHandler(db),
		Checkout:     handler.NewCheckoutHandler(checkoutService),
		Subscription: handler.NewSubscriptionHandler(subscriptionService),
		Admin:        handler.NewAdminHandler(runner, orderRepo),
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
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			log.Error("scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited gracefully")
}
