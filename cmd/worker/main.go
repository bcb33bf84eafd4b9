package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/internal/bulk"
	"github.com/sumitpay/billing-backend/internal/consumers/bulkactions"
	"github.com/sumitpay/billing-backend/internal/consumers/webhooktasks"
	"github.com/sumitpay/billing-backend/internal/crm"
	"github.com/sumitpay/billing-backend/internal/documents"
	"github.com/sumitpay/billing-backend/internal/settings"
	"github.com/sumitpay/billing-backend/internal/tokens"
	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/config"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/outbox/idempotency"
	"github.com/sumitpay/billing-backend/pkg/pubsub"
	"github.com/sumitpay/billing-backend/pkg/redis"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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
	billingMetrics := metrics.NewBillingMetrics(prometheus.DefaultRegisterer)
	webhookMetrics := metrics.NewWebhookMetrics(prometheus.DefaultRegisterer)
	bulkMetrics := metrics.NewBulkMetrics(prometheus.DefaultRegisterer)

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
		Metrics:    billingMetrics,
		Logger:     logg,
		BatchLimit: cfg.Billing.DueBatchLimit,
		TestMode:   cfg.Sumit.TestMode,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	tokenService, err := tokens.NewService(tokens.ServiceParams{
		Repo:    tokens.NewRepository(dbClient.DB()),
		Client:  dbClient,
		Gateway: gateway,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create token service", err)
		os.Exit(1)
	}

	crmService, err := crm.NewService(crm.ServiceParams{
		Repo:          crm.NewRepository(dbClient.DB()),
		Gateway:       gateway,
		StockFolderID: cfg.Sumit.StockFolderID,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create crm service", err)
		os.Exit(1)
	}

	processor, err := webhooks.NewProcessor(webhooks.ProcessorParams{
		Repo:          webhooks.NewRepository(dbClient.DB()),
		Client:        dbClient,
		Outbox:        outboxService,
		Transactions:  billingService,
		Subscriptions: billingService,
		Tokens:        tokenService,
		CRM:           crmService,
		WebhookSecret: cfg.Sumit.WebhookSecret,
		Trust:         settingsService,
		MaxRetries:    cfg.Webhooks.MaxRetries,
		Metrics:       webhookMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook processor", err)
		os.Exit(1)
	}

	executor, err := bulk.NewExecutor(bulk.ExecutorParams{
		Subscriptions: billingService,
		Tokens:        tokenService,
		Documents:     documentService,
		Metrics:       bulkMetrics,
		Logger:        logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bulk executor", err)
		os.Exit(1)
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Webhooks.DedupTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency guard", err)
		os.Exit(1)
	}

	webhookConsumer, err := webhooktasks.NewConsumer(processor, pubsubClient.WebhooksSubscription(), guard, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook consumer", err)
		os.Exit(1)
	}

	bulkConsumer, err := bulkactions.NewConsumer(executor, pubsubClient.BulkSubscription(), guard, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create bulk consumer", err)
		os.Exit(1)
	}

	service, err := NewService(ServiceParams{
		Config:          cfg,
		Logger:          logg,
		DB:              dbClient,
		Redis:           redisClient,
		PubSub:          pubsubClient,
		WebhookConsumer: webhookConsumer,
		BulkConsumer:    bulkConsumer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logg.Info(runCtx, "starting worker")
	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shut down gracefully")
}
