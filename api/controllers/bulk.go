package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/api/responses"
	"github.com/sumitpay/billing-backend/api/validators"
	"github.com/sumitpay/billing-backend/internal/bulk"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
)

const maxBulkRecords = 500

// BatchPublisher hands a validated batch to the bulk-actions queue.
type BatchPublisher interface {
	PublishBulkBatch(ctx context.Context, batch bulk.Batch) error
}

type bulkRecordRequest struct {
	Action       string `json:"action" validate:"required"`
	TargetID     string `json:"target_id" validate:"required,uuid"`
	Reason       string `json:"reason,omitempty" validate:"omitempty,max=500"`
	EmailAddress string `json:"email_address,omitempty" validate:"omitempty,email"`
}

type bulkEnqueueRequest struct {
	RequestedBy string              `json:"requested_by,omitempty"`
	Records     []bulkRecordRequest `json:"records" validate:"required,min=1,dive"`
}

// BulkEnqueue validates a batch of actions and queues it for asynchronous
// execution. Records are validated up front so a typo never reaches the
// executor.
func BulkEnqueue(pub BatchPublisher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bulk queue unavailable"))
			return
		}

		var payload bulkEnqueueRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(payload.Records) > maxBulkRecords {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("batch exceeds %d records", maxBulkRecords)))
			return
		}

		records := make([]bulk.Record, 0, len(payload.Records))
		for i, rec := range payload.Records {
			action, err := enums.ParseBulkActionType(rec.Action)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid action").
					WithDetails(map[string]any{"record": i}))
				return
			}
			targetID, err := uuid.Parse(rec.TargetID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target id").
					WithDetails(map[string]any{"record": i}))
				return
			}
			if action == enums.BulkActionEmailDocument && rec.EmailAddress == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "email_address is required for email_document").
					WithDetails(map[string]any{"record": i}))
				return
			}
			records = append(records, bulk.Record{
				Action:       action,
				TargetID:     targetID,
				Reason:       rec.Reason,
				EmailAddress: rec.EmailAddress,
			})
		}

		batch := bulk.Batch{
			BatchID:     uuid.New(),
			RequestedBy: payload.RequestedBy,
			Records:     records,
		}
		if err := pub.PublishBulkBatch(r.Context(), batch); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enqueue bulk batch"))
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"batch_id": batch.BatchID,
			"records":  len(records),
		})
	}
}
