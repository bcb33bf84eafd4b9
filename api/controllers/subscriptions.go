package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumitpay/billing-backend/api/responses"
	"github.com/sumitpay/billing-backend/api/validators"
	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/pagination"
)

// BillingService is the slice of the billing engine the admin API drives.
type BillingService interface {
	Create(ctx context.Context, input billing.CreateSubscriptionInput) (*models.Subscription, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, status *enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, int64, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	Pause(ctx context.Context, id uuid.UUID) error
	Resume(ctx context.Context, id uuid.UUID) error
	ChargeNow(ctx context.Context, id uuid.UUID) (billing.ChargeOutcome, error)
	ListTransactions(ctx context.Context, id uuid.UUID, params pagination.Params) (billing.TransactionPage, error)
}

type subscriptionCreateRequest struct {
	SubscriberType string          `json:"subscriber_type" validate:"required"`
	SubscriberID   string          `json:"subscriber_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	Currency       string          `json:"currency,omitempty"`
	IntervalMonths int             `json:"interval_months,omitempty" validate:"omitempty,min=1,max=36"`
	TotalCycles    *int            `json:"total_cycles,omitempty" validate:"omitempty,min=1"`
	TokenID        *uuid.UUID      `json:"token_id,omitempty"`
	TrialEndsAt    *time.Time      `json:"trial_ends_at,omitempty"`
	StartAt        *time.Time      `json:"start_at,omitempty"`
}

func (r subscriptionCreateRequest) toInput() billing.CreateSubscriptionInput {
	return billing.CreateSubscriptionInput{
		SubscriberType: r.SubscriberType,
		SubscriberID:   r.SubscriberID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		IntervalMonths: r.IntervalMonths,
		TotalCycles:    r.TotalCycles,
		TokenID:        r.TokenID,
		TrialEndsAt:    r.TrialEndsAt,
		StartAt:        r.StartAt,
	}
}

// SubscriptionCreate registers a subscription and schedules its first charge.
func SubscriptionCreate(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		var payload subscriptionCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Create(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

// SubscriptionList returns subscriptions newest first with an optional
// status filter.
func SubscriptionList(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.SubscriptionStatus
		if raw := r.URL.Query().Get("status"); raw != "" {
			parsed, err := enums.ParseSubscriptionStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		subs, total, err := svc.List(r.Context(), status, limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"subscriptions": subs,
			"total":         total,
			"limit":         limit,
			"offset":        offset,
		})
	}
}

// SubscriptionGet returns a single subscription by id.
func SubscriptionGet(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sub)
	}
}

type subscriptionCancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// SubscriptionCancel terminates a subscription. The reason body is optional.
func SubscriptionCancel(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionCancelRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		if err := svc.Cancel(r.Context(), id, payload.Reason); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

// SubscriptionPause suspends charging when the pause flag allows it.
func SubscriptionPause(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Pause(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "paused"})
	}
}

// SubscriptionResume reactivates a paused subscription.
func SubscriptionResume(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Resume(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "active"})
	}
}

// SubscriptionCharge runs a charge immediately. A gateway decline is a
// business outcome and still answers 200.
func SubscriptionCharge(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.ChargeNow(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"charged": outcome.Success,
			"message": outcome.Message,
		})
	}
}

// SubscriptionTransactions returns the subscription's charge history, newest
// first, with a cursor for the next page.
func SubscriptionTransactions(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		id, err := subscriptionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListTransactions(r.Context(), id, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"transactions": page.Transactions,
			"next_cursor":  page.NextCursor,
		})
	}
}

func subscriptionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "subscriptionID"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid subscription id")
	}
	return id, nil
}
