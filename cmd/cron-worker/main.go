package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/internal/consumers/webhooktasks"
	"github.com/sumitpay/billing-backend/internal/crm"
	"github.com/sumitpay/billing-backend/internal/cron"
	"github.com/sumitpay/billing-backend/internal/documents"
	"github.com/sumitpay/billing-backend/internal/settings"
	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/config"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
	"github.com/sumitpay/billing-backend/pkg/migrate"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/pubsub"
	"github.com/sumitpay/billing-backend/pkg/redis"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

const lockKeyFormat = "sumit:cron-worker:lock:%s"

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

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

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

	billingJob, err := cron.NewBillingJob(cron.BillingJobParams{
		Logger: logg,
		Engine: billingService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing job", err)
		os.Exit(1)
	}

	retryJob, err := cron.NewWebhookRetryJob(cron.WebhookRetryJobParams{
		Logger:     logg,
		Repository: webhooks.NewRepository(dbClient.DB()),
		Queue:      webhooktasks.NewPublisher(pubsubClient.WebhooksPublisher()),
		MaxRetries: cfg.Webhooks.MaxRetries,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook retry job", err)
		os.Exit(1)
	}

	documentJob, err := cron.NewDocumentSyncJob(cron.DocumentSyncJobParams{
		Logger:    logg,
		Documents: documentService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create document sync job", err)
		os.Exit(1)
	}

	stockJob, err := cron.NewStockSyncJob(cron.StockSyncJobParams{
		Logger: logg,
		CRM:    crmService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stock sync job", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(billingJob, retryJob, documentJob, stockJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Billing.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
