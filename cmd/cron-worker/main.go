package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tellowai/admin-api-sub001/internal/cron"
	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/internal/providers"
	generationwebhook "github.com/tellowai/admin-api-sub001/internal/webhooks/generation"
	"github.com/tellowai/admin-api-sub001/pkg/callbacktoken"
	"github.com/tellowai/admin-api-sub001/pkg/config"
	"github.com/tellowai/admin-api-sub001/pkg/db"
	"github.com/tellowai/admin-api-sub001/pkg/eventbus"
	"github.com/tellowai/admin-api-sub001/pkg/logger"
	"github.com/tellowai/admin-api-sub001/pkg/metrics"
	"github.com/tellowai/admin-api-sub001/pkg/migrate"
	"github.com/tellowai/admin-api-sub001/pkg/pubsub"
	"github.com/tellowai/admin-api-sub001/pkg/redis"
)

const cronLockName = "stale_generations"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	var (
		lock     cron.Lock
		locker   generationwebhook.Locker
		lockKeyF func(string) string
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(ctx, "error closing redis", err)
			}
		}()
		redisLocker, err := redis.NewLocker(redisClient)
		if err != nil {
			logg.Error(ctx, "failed to create redis locker", err)
			os.Exit(1)
		}
		locker = redisLocker
		redisLock, err := cron.NewRedisLock(redisLocker, redisClient.CronLockKey(cronLockName), 0)
		if err != nil {
			logg.Error(ctx, "failed to create cron lock", err)
			os.Exit(1)
		}
		lock = redisLock
		lockKeyF = redisClient.GenerationLockKey
	} else {
		logg.Warn(ctx, "redis not configured; run a single cron worker replica")
		lock = cron.NewLocalLock()
	}

	genMetrics := metrics.NewGenerationMetrics(prometheus.DefaultRegisterer)
	cronMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	cfg.PubSub.Producer = "genflow-cron-worker"
	topics := eventbus.KnownTopics(cfg.PubSub.Environment, cfg.PubSub.Domain)
	psClient, err := pubsub.Connect(ctx, cfg.GCP, cfg.PubSub, topics, logg)
	if err != nil {
		logg.Error(ctx, "pubsub connection failed", err)
		os.Exit(1)
	}
	defer func() {
		if err := psClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	publisher, err := eventbus.NewService(eventbus.ServiceParams{
		Config:  cfg.PubSub,
		Logger:  logg,
		PubSub:  psClient,
		Metrics: genMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create event publisher", err)
		os.Exit(1)
	}

	registry, err := providers.NewRegistryFromConfig(cfg.Providers)
	if err != nil {
		logg.Error(ctx, "failed to configure providers", err)
		os.Exit(1)
	}

	tokens, err := callbacktoken.NewAEADCodec(cfg.Webhook.TokenKey)
	if err != nil {
		logg.Error(ctx, "failed to create callback token codec", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Repository: ledger.NewRepository(dbClient.DB()),
		DB:         dbClient,
	})
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}

	gateway, err := generationwebhook.NewService(generationwebhook.ServiceParams{
		Ledger:    ledgerService,
		Publisher: publisher,
		Tokens:    tokens,
		Logger:    logg,
		Metrics:   genMetrics,
		Locker:    locker,
		LockKey:   lockKeyF,
		LockTTL:   cfg.Webhook.LockTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create webhook gateway", err)
		os.Exit(1)
	}

	staleJob, err := cron.NewStaleGenerationJob(cron.StaleGenerationJobParams{
		Logger:     logg,
		Ledger:     ledgerService,
		Providers:  registry,
		Gateway:    gateway,
		Metrics:    cronMetrics,
		StaleAfter: cfg.Reconciler.StaleAfter,
		MaxAge:     cfg.Reconciler.MaxAge,
		BatchSize:  cfg.Reconciler.BatchSize,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stale generation job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(staleJob),
		Lock:     lock,
		Metrics:  cronMetrics,
		Interval: cfg.Reconciler.Interval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}
