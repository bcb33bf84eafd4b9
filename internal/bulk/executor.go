package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/sumitpay/billing-backend/internal/billing"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
)

// defaultBackoffSteps are the waits between attempts of a single record.
// Three attempts total: the third step is only consulted if the attempt
// ceiling is raised.
var defaultBackoffSteps = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

const defaultMaxAttempts = 3

// SubscriptionActions is the slice of the billing engine the executor drives.
type SubscriptionActions interface {
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
	ChargeNow(ctx context.Context, id uuid.UUID) (billing.ChargeOutcome, error)
}

// TokenActions refreshes vaulted payment methods from the gateway.
type TokenActions interface {
	SyncFromGateway(ctx context.Context, id uuid.UUID) error
}

// DocumentActions delivers stored documents by email.
type DocumentActions interface {
	EmailDocument(ctx context.Context, id uuid.UUID, address string) error
}

// Record is one unit of work in a batch.
type Record struct {
	Action       enums.BulkActionType `json:"action"`
	TargetID     uuid.UUID            `json:"target_id"`
	Reason       string               `json:"reason,omitempty"`
	EmailAddress string               `json:"email_address,omitempty"`
}

// Batch is the wire shape of an enqueued bulk request.
type Batch struct {
	BatchID     uuid.UUID `json:"batch_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Records     []Record  `json:"records"`
}

// RecordResult reports one record's outcome.
type RecordResult struct {
	Record   Record `json:"record"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Message  string `json:"message,omitempty"`
}

// BatchSummary reports a batch per record. One bad record never fails the
// batch.
type BatchSummary struct {
	BatchID   uuid.UUID      `json:"batch_id"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []RecordResult `json:"results"`
}

// Executor runs bulk action batches with per-record isolation. Infrastructure
// failures are retried on fixed backoff steps; business-rule failures are
// terminal for the record.
type Executor struct {
	subscriptions SubscriptionActions
	tokens        TokenActions
	documents     DocumentActions
	metrics       *metrics.BulkMetrics
	logg          *logger.Logger
	backoffSteps  []time.Duration
	maxAttempts   int
}

// ExecutorParams collects the executor dependencies.
type ExecutorParams struct {
	Subscriptions SubscriptionActions
	Tokens        TokenActions
	Documents     DocumentActions
	Metrics       *metrics.BulkMetrics
	Logger        *logger.Logger
	// BackoffSteps overrides the 1m/5m/15m default. Tests shrink these.
	BackoffSteps []time.Duration
	MaxAttempts  int
}

func NewExecutor(p ExecutorParams) (*Executor, error) {
	if p.Subscriptions == nil {
		return nil, errors.New("subscription actions are required")
	}
	steps := p.BackoffSteps
	if len(steps) == 0 {
		steps = defaultBackoffSteps
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Executor{
		subscriptions: p.Subscriptions,
		tokens:        p.Tokens,
		documents:     p.Documents,
		metrics:       p.Metrics,
		logg:          p.Logger,
		backoffSteps:  steps,
		maxAttempts:   maxAttempts,
	}, nil
}

// Execute runs every record in the batch and reports outcomes individually.
func (e *Executor) Execute(ctx context.Context, batch Batch) BatchSummary {
	summary := BatchSummary{
		BatchID: batch.BatchID,
		Results: make([]RecordResult, 0, len(batch.Records)),
	}

	for _, record := range batch.Records {
		result := e.runRecord(ctx, record)
		if result.Success {
			summary.Succeeded++
			e.metrics.IncAction(record.Action.String(), "success")
		} else {
			summary.Failed++
			e.metrics.IncAction(record.Action.String(), "failure")
		}
		summary.Results = append(summary.Results, result)
	}

	if e.logg != nil {
		e.logg.Info(e.logg.WithFields(ctx, map[string]any{
			"batch_id":  batch.BatchID.String(),
			"succeeded": summary.Succeeded,
			"failed":    summary.Failed,
		}), "bulk batch finished")
	}
	return summary
}

func (e *Executor) runRecord(ctx context.Context, record Record) RecordResult {
	result := RecordResult{Record: record}

	err := retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		result.Attempts++
		applyErr := e.apply(ctx, record)
		if applyErr == nil {
			return nil
		}
		if pkgerrors.IsRetryable(applyErr) {
			return retry.RetryableError(applyErr)
		}
		return applyErr
	})
	if err != nil {
		result.Message = err.Error()
		if e.logg != nil {
			e.logg.Error(e.logg.WithFields(ctx, map[string]any{
				"bulk_action": record.Action.String(),
				"target_id":   record.TargetID.String(),
				"attempts":    result.Attempts,
			}), "bulk record failed", err)
		}
		return result
	}

	result.Success = true
	return result
}

// backoff yields the configured steps in order, capped at maxAttempts total
// attempts. With the defaults the record runs at most three times, waiting
// 1m then 5m between attempts.
func (e *Executor) backoff() retry.Backoff {
	steps := e.backoffSteps
	index := 0
	var b retry.BackoffFunc = func() (time.Duration, bool) {
		if index >= len(steps) {
			return 0, true
		}
		next := steps[index]
		index++
		return next, false
	}
	return retry.WithMaxRetries(uint64(e.maxAttempts-1), b)
}

func (e *Executor) apply(ctx context.Context, record Record) error {
	switch record.Action {
	case enums.BulkActionCancelSubscription:
		reason := record.Reason
		if reason == "" {
			reason = "bulk cancellation"
		}
		return e.subscriptions.Cancel(ctx, record.TargetID, reason)

	case enums.BulkActionChargeSubscription:
		outcome, err := e.subscriptions.ChargeNow(ctx, record.TargetID)
		if err != nil {
			return err
		}
		if !outcome.Success {
			// A decline is a business outcome; the billing engine owns any
			// further retry scheduling.
			return pkgerrors.New(pkgerrors.CodeGatewayDeclined, outcome.Message)
		}
		return nil

	case enums.BulkActionSyncToken:
		if e.tokens == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "token actions are not configured")
		}
		return e.tokens.SyncFromGateway(ctx, record.TargetID)

	case enums.BulkActionEmailDocument:
		if e.documents == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "document actions are not configured")
		}
		if record.EmailAddress == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "email address is required")
		}
		return e.documents.EmailDocument(ctx, record.TargetID, record.EmailAddress)

	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown bulk action %q", record.Action))
	}
}
