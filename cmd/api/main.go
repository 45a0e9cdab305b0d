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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tellowai/admin-api-sub001/api/controllers"
	"github.com/tellowai/admin-api-sub001/api/routes"
	"github.com/tellowai/admin-api-sub001/internal/ledger"
	"github.com/tellowai/admin-api-sub001/internal/providers"
	"github.com/tellowai/admin-api-sub001/internal/status"
	"github.com/tellowai/admin-api-sub001/internal/submission"
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
	"github.com/tellowai/admin-api-sub001/pkg/storage/gcs"
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
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = "sqlite"
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	readiness := []controllers.Dependency{{Name: "db", Pinger: dbClient}}

	var locker generationwebhook.Locker
	lockKey := func(id string) string { return "genflow:lock:generation:" + id }
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
		lockKey = redisClient.GenerationLockKey
		readiness = append(readiness, controllers.Dependency{Name: "redis", Pinger: redisClient})
	} else {
		logg.Warn(ctx, "redis not configured; webhook ingestion runs without a generation lock")
		readiness = append(readiness, controllers.Dependency{Name: "redis"})
	}

	genMetrics := metrics.NewGenerationMetrics(prometheus.DefaultRegisterer)

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
	readiness = append(readiness, controllers.Dependency{Name: "pubsub", Pinger: psClient})

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

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap gcs", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(ctx, "error closing gcs", err)
		}
	}()
	readiness = append(readiness, controllers.Dependency{Name: "gcs", Pinger: gcsClient})

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

	submissionService, err := submission.NewService(submission.ServiceParams{
		Ledger:         ledgerService,
		Providers:      registry,
		Publisher:      publisher,
		Tokens:         tokens,
		WebhookBaseURL: cfg.Webhook.BaseURL,
		Logger:         logg,
		Metrics:        genMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create submission service", err)
		os.Exit(1)
	}

	gateway, err := generationwebhook.NewService(generationwebhook.ServiceParams{
		Ledger:    ledgerService,
		Publisher: publisher,
		Tokens:    tokens,
		Logger:    logg,
		Metrics:   genMetrics,
		Locker:    locker,
		LockKey:   lockKey,
		LockTTL:   cfg.Webhook.LockTTL,
	})
	if err != nil {
		logg.Error(ctx, "failed to create webhook gateway", err)
		os.Exit(1)
	}

	statusService, err := status.NewService(status.ServiceParams{
		Ledger:          ledgerService,
		Signer:          gcsClient,
		EphemeralMarker: cfg.GCS.EphemeralMarker,
		URLExpiry:       cfg.GCS.DownloadURLExpiry,
	})
	if err != nil {
		logg.Error(ctx, "failed to create status service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Submission: submissionService,
			Status:     statusService,
			Webhooks:   gateway,
			Readiness:  readiness,
			Metrics:    promhttp.Handler(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
	logg.Info(ctx, "api server stopped")
}
