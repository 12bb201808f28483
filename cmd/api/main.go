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
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/giftvouchers-backend/api/routes"
	"github.com/angelmondragon/giftvouchers-backend/internal/auth"
	"github.com/angelmondragon/giftvouchers-backend/internal/cron"
	"github.com/angelmondragon/giftvouchers-backend/internal/lookupguard"
	"github.com/angelmondragon/giftvouchers-backend/internal/purchases"
	"github.com/angelmondragon/giftvouchers-backend/internal/reconciler"
	"github.com/angelmondragon/giftvouchers-backend/internal/users"
	"github.com/angelmondragon/giftvouchers-backend/internal/vouchers"
	"github.com/angelmondragon/giftvouchers-backend/pkg/auth/session"
	"github.com/angelmondragon/giftvouchers-backend/pkg/config"
	"github.com/angelmondragon/giftvouchers-backend/pkg/db"
	"github.com/angelmondragon/giftvouchers-backend/pkg/instance"
	"github.com/angelmondragon/giftvouchers-backend/pkg/logger"
	"github.com/angelmondragon/giftvouchers-backend/pkg/mailer"
	"github.com/angelmondragon/giftvouchers-backend/pkg/metrics"
	"github.com/angelmondragon/giftvouchers-backend/pkg/migrate"
	"github.com/angelmondragon/giftvouchers-backend/pkg/outbox"
	"github.com/angelmondragon/giftvouchers-backend/pkg/redis"
	"github.com/angelmondragon/giftvouchers-backend/pkg/renderer"
	"github.com/angelmondragon/giftvouchers-backend/pkg/storage/local"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	voucherMetrics := metrics.NewVoucherMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	purchaseRepo := purchases.NewRepository(dbClient.DB())
	voucherRepo := vouchers.NewRepository(dbClient.DB())

	images, err := local.NewStore(cfg.Fulfillment.ImageDir, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare image store", err)
		os.Exit(1)
	}

	imageRenderer, err := renderer.NewClient(cfg.Renderer)
	if err != nil {
		logg.Error(context.Background(), "failed to create renderer client", err)
		os.Exit(1)
	}

	var notifier reconciler.Notifier
	if cfg.Sendgrid.Enabled() {
		notifier = mailer.New(cfg.Sendgrid, logg)
	} else {
		logg.Warn(context.Background(), "sendgrid not configured, voucher emails disabled")
	}

	authService, err := auth.NewService(auth.ServiceParams{
		AdminRepo:      users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	purchaseService, err := purchases.NewService(purchases.ServiceParams{
		Repo:   purchaseRepo,
		Config: cfg.Purchases,
		Links:  purchases.DefaultPaymentLinks(cfg.Purchases.DefaultPaymentKey),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	voucherService, err := vouchers.NewService(vouchers.ServiceParams{
		DB:              dbClient,
		Repo:            voucherRepo,
		Numbers:         purchaseRepo,
		Outbox:          outboxService,
		Metrics:         voucherMetrics,
		Logger:          logg,
		PINHash:         cfg.Staff.PINHash,
		Lifetime:        cfg.Fulfillment.VoucherLifetime,
		Digits:          cfg.Purchases.VoucherNumberDigits,
		MaxDrawAttempts: cfg.Purchases.MaxDrawAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher service", err)
		os.Exit(1)
	}

	reconcilerService, err := reconciler.NewService(reconciler.ServiceParams{
		DB:          dbClient,
		Purchases:   purchaseRepo,
		Vouchers:    voucherRepo,
		Outbox:      outboxService,
		Renderer:    imageRenderer,
		Images:      images,
		Notifier:    notifier,
		Claims:      reconciler.NewRedisClaims(redisClient, cfg.Webhook.ClaimTTL),
		Metrics:     voucherMetrics,
		Logger:      logg,
		Fulfillment: cfg.Fulfillment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciler", err)
		os.Exit(1)
	}

	var guardStore lookupguard.Store = lookupguard.NewMemoryStore()
	if cfg.LookupGuard.UsesRedis() {
		guardStore = lookupguard.NewRedisStore(redisClient)
	}
	guard, err := lookupguard.New(lookupguard.Params{
		Store:   guardStore,
		Config:  cfg.LookupGuard,
		Metrics: voucherMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create lookup guard", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewLookupGuardSweepJob(logg, guard)
	if err != nil {
		logg.Error(context.Background(), "failed to create lookup guard sweep job", err)
		os.Exit(1)
	}
	sweeper, err := cron.NewService(cron.ServiceParams{
		Name:     "api-sweeper",
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Lock:     &cron.LocalLock{},
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.LookupGuard.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweeper", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID("api-0"),
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			images,
			sessionManager,
			guard,
			authService,
			purchaseService,
			voucherService,
			reconcilerService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := sweeper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
