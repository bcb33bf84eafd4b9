package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sumitpay/billing-backend/api/controllers"
	"github.com/sumitpay/billing-backend/api/routes"
	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/internal/consumers/bulkactions"
	"github.com/sumitpay/billing-backend/internal/consumers/webhooktasks"
	"github.com/sumitpay/billing-backend/internal/documents"
	"github.com/sumitpay/billing-backend/internal/settings"
	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/config"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
	"github.com/sumitpay/billing-backend/pkg/migrate"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/outbox/idempotency"
	"github.com/sumitpay/billing-backend/pkg/pubsub"
	"github.com/sumitpay/billing-backend/pkg/redis"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	gateway, err := sumit.NewClient(cfg.Sumit, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create gateway client", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(dbClient.DB(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	documentService, err := documents.NewService(documents.ServiceParams{
		Repo:    documents.NewRepository(dbClient.DB()),
		Client:  dbClient,
		Gateway: gateway,
		Outbox:  outboxService,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create document service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:       billing.NewRepository(dbClient.DB()),
		Client:     dbClient,
		Gateway:    gateway,
		Outbox:     outboxService,
		Settings:   settingsService,
		Documents:  documentService,
		Metrics:    metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
		BatchLimit: cfg.Billing.DueBatchLimit,
		TestMode:   cfg.Sumit.TestMode,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	dedupeGuard, err := idempotency.NewManager(redisClient, cfg.Webhooks.DedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create dedupe guard", err)
		os.Exit(1)
	}

	ingestService, err := webhooks.NewService(webhooks.ServiceParams{
		Repo:          webhooks.NewRepository(dbClient.DB()),
		WebhookSecret: cfg.Sumit.WebhookSecret,
		Queue:         webhooktasks.NewPublisher(pubsubClient.WebhooksPublisher()),
		Dedupe:        dedupeGuard,
		Metrics:       metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook ingest service", err)
		os.Exit(1)
	}

	batchPublisher := bulkactions.NewPublisher(pubsubClient.BulkPublisher())

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg,
			map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"pubsub":   pubsubClient,
			},
			ingestService, billingService, documentService, batchPublisher),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-runCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}
}
