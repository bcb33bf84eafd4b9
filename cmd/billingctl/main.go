package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/internal/bulk"
	"github.com/sumitpay/billing-backend/internal/consumers/bulkactions"
	"github.com/sumitpay/billing-backend/internal/crm"
	"github.com/sumitpay/billing-backend/internal/documents"
	"github.com/sumitpay/billing-backend/internal/settings"
	"github.com/sumitpay/billing-backend/pkg/config"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/enums"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
	"github.com/sumitpay/billing-backend/pkg/migrate"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/pubsub"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

const usage = `billingctl runs one-off billing operations against the configured environment.

Commands:
  process-recurring-payments  charge every due subscription (or one with -subscription)
  stock-sync                  refresh the CRM stock folder cache
  sync-all-documents          refresh local document rows from the gateway
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]
	args := os.Args[2:]

	logg := logger.New(logger.Options{ServiceName: "billingctl"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "billingctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
		"cmd": command,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(logg, "database", err)
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		requireResource(logg, "migrations", err)
	}

	gateway, err := sumit.NewClient(cfg.Sumit, logg)
	requireResource(logg, "gateway client", err)

	switch command {
	case "process-recurring-payments":
		runProcessRecurring(ctx, cfg, logg, dbClient, gateway, args)
	case "stock-sync":
		runStockSync(ctx, cfg, logg, dbClient, gateway, args)
	case "sync-all-documents":
		runDocumentSync(ctx, cfg, logg, dbClient, gateway, args)
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runProcessRecurring(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway *sumit.Client, args []string) {
	fs := flag.NewFlagSet("process-recurring-payments", flag.ExitOnError)
	sync := fs.Bool("sync", false, "charge inline instead of enqueuing onto the bulk topic")
	subscription := fs.String("subscription", "", "charge a single subscription by ID")
	_ = fs.Parse(args)

	var targetID *uuid.UUID
	if *subscription != "" {
		id, err := uuid.Parse(*subscription)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid subscription id %q: %v\n", *subscription, err)
			os.Exit(2)
		}
		targetID = &id
	}

	if !*sync {
		enqueueRecurring(ctx, cfg, logg, dbClient, targetID)
		return
	}

	service := newBillingService(cfg, logg, dbClient, gateway)

	if targetID != nil {
		outcome, err := service.ProcessRecurringCharge(ctx, *targetID)
		if err != nil {
			logg.Error(ctx, "recurring charge failed", err)
			os.Exit(1)
		}
		fmt.Printf("subscription %s charged=%t message=%q\n", *targetID, outcome.Success, outcome.Message)
		return
	}

	outcomes, err := service.ProcessDueSubscriptions(ctx)
	if err != nil {
		logg.Error(ctx, "recurring batch failed", err)
		os.Exit(1)
	}
	charged, declined := 0, 0
	for id, outcome := range outcomes {
		if outcome.Success {
			charged++
			continue
		}
		declined++
		fmt.Printf("subscription %s declined: %s\n", id, outcome.Message)
	}
	fmt.Printf("processed %d subscriptions: %d charged, %d declined\n", len(outcomes), charged, declined)
}

// enqueueRecurring hands the charges to the worker fleet through the bulk
// actions topic instead of charging from the operator's shell.
func enqueueRecurring(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, targetID *uuid.UUID) {
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(logg, "pubsub", err)
	defer pubsubClient.Close()

	var ids []uuid.UUID
	if targetID != nil {
		ids = []uuid.UUID{*targetID}
	} else {
		repo := billing.NewRepository(dbClient.DB())
		due, err := repo.ListDue(ctx, time.Now().UTC(), cfg.Billing.DueBatchLimit)
		requireResource(logg, "due subscriptions", err)
		for _, sub := range due {
			ids = append(ids, sub.ID)
		}
	}

	if len(ids) == 0 {
		fmt.Println("no due subscriptions to enqueue")
		return
	}

	records := make([]bulk.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, bulk.Record{
			Action:   enums.BulkActionChargeSubscription,
			TargetID: id,
		})
	}
	batch := bulk.Batch{
		BatchID:     uuid.New(),
		RequestedBy: "billingctl",
		Records:     records,
	}

	publisher := bulkactions.NewPublisher(pubsubClient.BulkPublisher())
	if err := publisher.PublishBulkBatch(ctx, batch); err != nil {
		logg.Error(ctx, "failed to enqueue bulk batch", err)
		os.Exit(1)
	}
	fmt.Printf("enqueued batch %s with %d charge records\n", batch.BatchID, len(records))
}

func runStockSync(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway *sumit.Client, args []string) {
	fs := flag.NewFlagSet("stock-sync", flag.ExitOnError)
	force := fs.Bool("force", false, "refetch every record regardless of last sync time")
	_ = fs.Parse(args)

	service, err := crm.NewService(crm.ServiceParams{
		Repo:          crm.NewRepository(dbClient.DB()),
		Gateway:       gateway,
		StockFolderID: cfg.Sumit.StockFolderID,
		Logger:        logg,
	})
	requireResource(logg, "crm service", err)

	summary, err := service.SyncStockFolder(ctx, *force)
	if err != nil {
		logg.Error(ctx, "stock sync failed", err)
		os.Exit(1)
	}
	fmt.Printf("stock sync: %d scanned, %d synced, %d failed\n", summary.Scanned, summary.Synced, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func runDocumentSync(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway *sumit.Client, args []string) {
	fs := flag.NewFlagSet("sync-all-documents", flag.ExitOnError)
	customerID := fs.Int64("customer-id", 0, "limit the sync to one gateway customer")
	days := fs.Int("days", 0, "only scan documents issued in the last N days")
	force := fs.Bool("force", false, "rescan finalized documents as well as drafts")
	dryRun := fs.Bool("dry-run", false, "report what would change without writing")
	_ = fs.Parse(args)

	service := newDocumentService(logg, dbClient, gateway)

	input := documents.SyncAllInput{
		Days:   *days,
		Force:  *force,
		DryRun: *dryRun,
	}
	if *customerID != 0 {
		input.CustomerID = customerID
	}

	summary, err := service.SyncAll(ctx, input)
	if err != nil {
		logg.Error(ctx, "document sync failed", err)
		os.Exit(1)
	}
	fmt.Printf("document sync: %d scanned, %d updated, %d skipped, %d failed\n",
		summary.Scanned, summary.Updated, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func newBillingService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, gateway *sumit.Client) *billing.Service {
	settingsService, err := settings.NewService(dbClient.DB(), cfg, logg)
	requireResource(logg, "settings service", err)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	documentService := newDocumentService(logg, dbClient, gateway)

	service, err := billing.NewService(billing.ServiceParams{
		Repo:       billing.NewRepository(dbClient.DB()),
		Client:     dbClient,
		Gateway:    gateway,
		Outbox:     outboxService,
		Settings:   settingsService,
		Documents:  documentService,
		Metrics:    metrics.NewBillingMetrics(nil),
		Logger:     logg,
		BatchLimit: cfg.Billing.DueBatchLimit,
		TestMode:   cfg.Sumit.TestMode,
	})
	requireResource(logg, "billing service", err)
	return service
}

func newDocumentService(logg *logger.Logger, dbClient *db.Client, gateway *sumit.Client) *documents.Service {
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	service, err := documents.NewService(documents.ServiceParams{
		Repo:    documents.NewRepository(dbClient.DB()),
		Client:  dbClient,
		Gateway: gateway,
		Outbox:  outboxService,
		Logger:  logg,
	})
	requireResource(logg, "document service", err)
	return service
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
