package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sumitpay/billing-backend/api/controllers"
	webhookcontrollers "github.com/sumitpay/billing-backend/api/controllers/webhooks"
	"github.com/sumitpay/billing-backend/api/middleware"
	"github.com/sumitpay/billing-backend/pkg/config"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	ingestService webhookcontrollers.IngestService,
	billingService controllers.BillingService,
	documentService controllers.DocumentService,
	batchPublisher controllers.BatchPublisher,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Handle("/metrics", promhttp.Handler())

	// Provider endpoints are unauthenticated beyond the signature header;
	// they must stay reachable when the admin key rotates.
	r.Route(cfg.App.WebhookPath+"/webhook", func(r chi.Router) {
		r.Post("/sumit", webhookcontrollers.SumitWebhook(ingestService, logg))
		r.Post("/sumit/{eventType}", webhookcontrollers.SumitWebhook(ingestService, logg))
		r.Post("/crm", webhookcontrollers.CRMWebhook(ingestService, logg))
		r.Post("/bit", webhookcontrollers.BitWebhook(ingestService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.App.AdminAPIKey, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionCreate(billingService, logg))
			r.Get("/", controllers.SubscriptionList(billingService, logg))
			r.Get("/{subscriptionID}", controllers.SubscriptionGet(billingService, logg))
			r.Get("/{subscriptionID}/transactions", controllers.SubscriptionTransactions(billingService, logg))
			r.Post("/{subscriptionID}/cancel", controllers.SubscriptionCancel(billingService, logg))
			r.Post("/{subscriptionID}/pause", controllers.SubscriptionPause(billingService, logg))
			r.Post("/{subscriptionID}/resume", controllers.SubscriptionResume(billingService, logg))
			r.Post("/{subscriptionID}/charge", controllers.SubscriptionCharge(billingService, logg))
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/sync", controllers.DocumentSyncAll(documentService, logg))
			r.Post("/{documentID}/email", controllers.DocumentEmail(documentService, logg))
		})

		r.Post("/bulk", controllers.BulkEnqueue(batchPublisher, logg))
	})

	return r
}
