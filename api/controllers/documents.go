package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/api/responses"
	"github.com/sumitpay/billing-backend/api/validators"
	"github.com/sumitpay/billing-backend/internal/documents"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

// DocumentService covers the accounting-document operations the admin API
// exposes.
type DocumentService interface {
	EmailDocument(ctx context.Context, id uuid.UUID, address string) error
	SyncAll(ctx context.Context, input documents.SyncAllInput) (documents.SyncSummary, error)
}

type documentEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// DocumentEmail asks the gateway to send the document to the given address.
func DocumentEmail(svc DocumentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "documentID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document id"))
			return
		}

		var payload documentEmailRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.EmailDocument(r.Context(), id, payload.Email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "sent"})
	}
}

type documentSyncRequest struct {
	CustomerID *int64 `json:"customer_id,omitempty"`
	Days       int    `json:"days,omitempty" validate:"omitempty,min=1,max=365"`
	Force      bool   `json:"force,omitempty"`
	DryRun     bool   `json:"dry_run,omitempty"`
}

// DocumentSyncAll backfills local document rows from the gateway.
func DocumentSyncAll(svc DocumentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "document service unavailable"))
			return
		}

		var payload documentSyncRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		summary, err := svc.SyncAll(r.Context(), documents.SyncAllInput{
			CustomerID: payload.CustomerID,
			Days:       payload.Days,
			Force:      payload.Force,
			DryRun:     payload.DryRun,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]int{
			"scanned": summary.Scanned,
			"updated": summary.Updated,
			"skipped": summary.Skipped,
			"failed":  summary.Failed,
		})
	}
}
