package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sumitpay/billing-backend/api/responses"
	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/types"
)

const signatureHeader = "X-Sumit-Signature"

// maxWebhookBody bounds inbound payloads; the gateway sends small JSON.
const maxWebhookBody = 1 << 20

// IngestService accepts an inbound delivery and persists the audit row.
type IngestService interface {
	Ingest(ctx context.Context, in webhooks.IngestInput) (*webhooks.IngestResult, error)
}

// SumitWebhook receives gateway events, with an optional {eventType} path
// segment declaring the event type.
func SumitWebhook(svc IngestService, logg *logger.Logger) http.HandlerFunc {
	return handleWebhook(svc, logg, enums.WebhookSourceSumit, func(r *http.Request) string {
		return chi.URLParam(r, "eventType")
	})
}

// CRMWebhook receives CRM entity notifications, including the positional
// array payload variant.
func CRMWebhook(svc IngestService, logg *logger.Logger) http.HandlerFunc {
	return handleWebhook(svc, logg, enums.WebhookSourceCRM, nil)
}

// BitWebhook receives Bit payment confirmations correlated by the orderid
// and orderkey query parameters.
func BitWebhook(svc IngestService, logg *logger.Logger) http.HandlerFunc {
	return handleWebhook(svc, logg, enums.WebhookSourceBit, nil)
}

func handleWebhook(svc IngestService, logg *logger.Logger, source enums.WebhookSource, eventType func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		declared := ""
		if eventType != nil {
			declared = eventType(r)
		}

		result, err := svc.Ingest(ctx, webhooks.IngestInput{
			Source:            source,
			DeclaredEventType: declared,
			Body:              body,
			ContentType:       r.Header.Get("Content-Type"),
			Headers:           r.Header,
			Query:             r.URL.Query(),
			SourceIP:          clientIP(r),
			Signature:         r.Header.Get(signatureHeader),
		})
		if err != nil {
			// Only structurally invalid requests reach here; no audit row
			// exists and a 400 tells the sender not to retry as-is.
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteWebhookAck(w, types.WebhookAck{
			Success:   true,
			Queued:    result.Queued,
			Message:   result.Message,
			WebhookID: result.WebhookID.String(),
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
