package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/outbox/payloads"
	"github.com/sumitpay/billing-backend/pkg/pagination"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

// Gateway is the slice of the payment client the billing engine calls.
type Gateway interface {
	Charge(ctx context.Context, req *sumit.ChargeRequest) (*sumit.ChargeResult, error)
}

// SettingsResolver exposes the runtime flags the engine consults per charge.
type SettingsResolver interface {
	RetryFailedCharges(ctx context.Context) bool
	CreateOrderDocument(ctx context.Context) bool
	AllowPause(ctx context.Context) bool
	MaxChargeRetries(ctx context.Context) int
}

// DocumentRecorder records the accounting document generated for a cleared
// charge inside the charge transaction.
type DocumentRecorder interface {
	RecordChargeDocument(ctx context.Context, tx *gorm.DB, sub *models.Subscription, result *sumit.ChargeResult) error
}

// ChargeOutcome is the per-subscription result of a due run.
type ChargeOutcome struct {
	Success bool
	Message string
}

// Service is the recurring billing engine.
type Service struct {
	repo       *Repository
	client     *db.Client
	gateway    Gateway
	outbox     *outbox.Service
	settings   SettingsResolver
	documents  DocumentRecorder
	metrics    *metrics.BillingMetrics
	logg       *logger.Logger
	batchLimit int
	testMode   bool
	nowFn      func() time.Time
}

// ServiceParams collects the billing engine dependencies.
type ServiceParams struct {
	Repo       *Repository
	Client     *db.Client
	Gateway    Gateway
	Outbox     *outbox.Service
	Settings   SettingsResolver
	Documents  DocumentRecorder
	Metrics    *metrics.BillingMetrics
	Logger     *logger.Logger
	BatchLimit int
	TestMode   bool
	Now        func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Repo == nil {
		return nil, errors.New("billing repository is required")
	}
	if p.Client == nil {
		return nil, errors.New("db client is required")
	}
	if p.Gateway == nil {
		return nil, errors.New("payment gateway is required")
	}
	if p.Settings == nil {
		return nil, errors.New("settings resolver is required")
	}
	nowFn := p.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{
		repo:       p.Repo,
		client:     p.Client,
		gateway:    p.Gateway,
		outbox:     p.Outbox,
		settings:   p.Settings,
		documents:  p.Documents,
		metrics:    p.Metrics,
		logg:       p.Logger,
		batchLimit: p.BatchLimit,
		testMode:   p.TestMode,
		nowFn:      nowFn,
	}, nil
}

var (
	_ webhooks.TransactionApplier  = (*Service)(nil)
	_ webhooks.SubscriptionApplier = (*Service)(nil)
)

// ProcessDueSubscriptions charges every subscription that is due. Each record
// is processed independently; one failure never aborts the rest.
func (s *Service) ProcessDueSubscriptions(ctx context.Context) (map[uuid.UUID]ChargeOutcome, error) {
	due, err := s.repo.ListDue(ctx, s.nowFn(), s.batchLimit)
	if err != nil {
		return nil, err
	}

	results := make(map[uuid.UUID]ChargeOutcome, len(due))
	var errs error
	for _, sub := range due {
		outcome, err := s.ProcessRecurringCharge(ctx, sub.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
			results[sub.ID] = ChargeOutcome{Success: false, Message: err.Error()}
			continue
		}
		results[sub.ID] = outcome
	}
	return results, errs
}

// ProcessRecurringCharge attempts one billing cycle for the subscription.
// The due window and status are re-checked under a row lock so overlapping
// scheduler runs cannot charge the same cycle twice.
func (s *Service) ProcessRecurringCharge(ctx context.Context, id uuid.UUID) (ChargeOutcome, error) {
	return s.charge(ctx, id, false)
}

// ChargeNow charges the subscription immediately, skipping the due window.
func (s *Service) ChargeNow(ctx context.Context, id uuid.UUID) (ChargeOutcome, error) {
	return s.charge(ctx, id, true)
}

func (s *Service) charge(ctx context.Context, id uuid.UUID, force bool) (ChargeOutcome, error) {
	if s.logg != nil {
		ctx = s.logg.WithSubscriptionID(ctx, id.String())
	}

	var outcome ChargeOutcome
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.nowFn()

		var sub *models.Subscription
		var err error
		if force {
			sub, err = s.repo.LockSubscriptionTx(tx, id)
		} else {
			sub, err = s.repo.ClaimDueTx(tx, id, now)
		}
		if err != nil {
			return err
		}
		if sub == nil {
			if force {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			outcome = ChargeOutcome{Success: false, Message: "subscription not due"}
			return nil
		}
		if force && sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("subscription in status %s cannot be charged", sub.Status))
		}

		req, err := s.buildChargeRequest(ctx, sub)
		if err != nil {
			outcome, err = s.applyFailure(ctx, tx, sub, now, nil, err.Error())
			return err
		}

		started := time.Now()
		result, chargeErr := s.gateway.Charge(ctx, req)
		s.metrics.ObserveChargeDuration(time.Since(started))

		switch {
		case chargeErr != nil:
			// Transport failures follow the same retry policy as declines;
			// only the stored message differs.
			s.metrics.IncChargeAttempt(metrics.ChargeResultError)
			outcome, err = s.applyFailure(ctx, tx, sub, now, nil, chargeErr.Error())
			return err

		case !result.Approved():
			s.metrics.IncChargeAttempt(metrics.ChargeResultDeclined)
			outcome, err = s.applyFailure(ctx, tx, sub, now, result, result.DeclineMessage())
			return err

		default:
			s.metrics.IncChargeAttempt(metrics.ChargeResultApproved)
			outcome, err = s.applySuccess(ctx, tx, sub, now, req, result)
			return err
		}
	})
	if err != nil {
		return ChargeOutcome{}, err
	}
	return outcome, nil
}

// buildChargeRequest resolves the stored charge reference. A recurring
// reference or a vaulted token must exist before any charge attempt.
func (s *Service) buildChargeRequest(ctx context.Context, sub *models.Subscription) (*sumit.ChargeRequest, error) {
	req := &sumit.ChargeRequest{
		Customer: sumit.Customer{
			ExternalIdentifier: sub.SubscriberID,
			SearchMode:         "Automatic",
		},
		Items: []sumit.ChargeItem{{
			Item:        sumit.ChargeItemDetails{Name: "Subscription"},
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   sub.Amount,
			Description: fmt.Sprintf("billing cycle %d", sub.CompletedCycles+1),
		}},
		Currency:          sub.Currency,
		VATIncluded:       true,
		ExternalReference: sub.ID.String(),
	}

	if sub.RecurringID != nil && *sub.RecurringID != "" {
		if customerID, err := strconv.ParseInt(*sub.RecurringID, 10, 64); err == nil {
			req.Customer.ID = &customerID
		}
	}

	var token *models.PaymentToken
	var err error
	if sub.TokenID != nil {
		token, err = s.repo.FindTokenByID(ctx, *sub.TokenID)
	} else {
		token, err = s.repo.FindDefaultToken(ctx, sub.SubscriberType, sub.SubscriberID)
	}
	if err != nil {
		return nil, err
	}
	if token != nil && token.ArchivedAt == nil {
		req.PaymentMethod = &sumit.PaymentMethod{
			CreditCardToken: token.Token,
			Type:            "CreditCard",
		}
	}

	if req.Customer.ID == nil && req.PaymentMethod == nil {
		return nil, errors.New("subscription has no recurring reference or vaulted token")
	}
	return req, nil
}

func (s *Service) applySuccess(ctx context.Context, tx *gorm.DB, sub *models.Subscription, now time.Time, req *sumit.ChargeRequest, result *sumit.ChargeResult) (ChargeOutcome, error) {
	payment := result.Data.Payment

	rawRequest, _ := json.Marshal(req)
	txn := models.Transaction{
		SubscriptionID: &sub.ID,
		PaymentID:      &payment.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		Status:         enums.TransactionStatusCompleted,
		RawRequest:     rawRequest,
		RawResponse:    result.Envelope.Raw,
		IsTest:         s.testMode,
	}
	if payment.AuthNumber != "" {
		txn.AuthNumber = &payment.AuthNumber
	}
	if err := s.repo.CreateTransactionTx(tx, &txn); err != nil {
		return ChargeOutcome{}, err
	}

	sub.CompletedCycles++
	sub.LastChargedAt = &now
	sub.RetryCount = 0
	if sub.Status == enums.SubscriptionStatusPending {
		sub.Status = enums.SubscriptionStatusActive
	}
	if sub.RecurringID == nil && result.Data.CustomerID != nil {
		recurring := strconv.FormatInt(*result.Data.CustomerID, 10)
		sub.RecurringID = &recurring
	}

	completed := !sub.CyclesRemaining()
	if completed {
		sub.Status = enums.SubscriptionStatusCompleted
		sub.NextChargeAt = nil
	} else {
		next := now.AddDate(0, sub.IntervalMonths, 0)
		sub.NextChargeAt = &next
	}
	if err := s.repo.SaveSubscriptionTx(tx, sub); err != nil {
		return ChargeOutcome{}, err
	}

	if s.outbox != nil {
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCharged,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Data: payloads.SubscriptionChargedEvent{
				SubscriptionID:  sub.ID,
				TransactionID:   txn.ID,
				PaymentID:       txn.PaymentID,
				Amount:          sub.Amount,
				Currency:        sub.Currency,
				CompletedCycles: sub.CompletedCycles,
				NextChargeAt:    sub.NextChargeAt,
			},
			OccurredAt: now,
		})
		if err != nil {
			return ChargeOutcome{}, err
		}
		if completed {
			err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSubscriptionCompleted,
				AggregateType: enums.AggregateSubscription,
				AggregateID:   sub.ID,
				Data: payloads.SubscriptionCompletedEvent{
					SubscriptionID:  sub.ID,
					CompletedCycles: sub.CompletedCycles,
					CompletedAt:     now,
				},
				OccurredAt: now,
			})
			if err != nil {
				return ChargeOutcome{}, err
			}
		}
	}

	if s.documents != nil && s.settings.CreateOrderDocument(ctx) {
		if err := s.documents.RecordChargeDocument(ctx, tx, sub, result); err != nil && s.logg != nil {
			// Document bookkeeping must not undo a cleared charge.
			s.logg.Error(ctx, "record charge document", err)
		}
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_id":       payment.ID,
			"completed_cycles": sub.CompletedCycles,
			"status":           sub.Status,
		}), "recurring charge cleared")
	}
	return ChargeOutcome{Success: true, Message: "charged"}, nil
}

func (s *Service) applyFailure(ctx context.Context, tx *gorm.DB, sub *models.Subscription, now time.Time, result *sumit.ChargeResult, message string) (ChargeOutcome, error) {
	txn := models.Transaction{
		SubscriptionID: &sub.ID,
		Amount:         sub.Amount,
		Currency:       sub.Currency,
		Status:         enums.TransactionStatusFailed,
		ErrorMessage:   &message,
		IsTest:         s.testMode,
	}
	if result != nil {
		txn.RawResponse = result.Envelope.Raw
		if result.Data.Payment != nil && result.Data.Payment.ID != 0 {
			txn.PaymentID = &result.Data.Payment.ID
		}
	}
	if err := s.repo.CreateTransactionTx(tx, &txn); err != nil {
		return ChargeOutcome{}, err
	}

	sub.RetryCount++
	willRetry := s.settings.RetryFailedCharges(ctx) && sub.RetryCount < s.settings.MaxChargeRetries(ctx)
	if willRetry {
		next := now.Add(retryBackoff(sub.RetryCount))
		sub.NextChargeAt = &next
		s.metrics.IncRetryScheduled()
	} else {
		sub.Status = enums.SubscriptionStatusFailed
		sub.NextChargeAt = nil
	}
	if err := s.repo.SaveSubscriptionTx(tx, sub); err != nil {
		return ChargeOutcome{}, err
	}

	if s.outbox != nil {
		err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionChargeFailed,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Data: payloads.SubscriptionChargeFailedEvent{
				SubscriptionID: sub.ID,
				TransactionID:  txn.ID,
				RetryCount:     sub.RetryCount,
				WillRetry:      willRetry,
				NextRetryAt:    sub.NextChargeAt,
				Reason:         message,
			},
			OccurredAt: now,
		})
		if err != nil {
			return ChargeOutcome{}, err
		}
	}

	if s.logg != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"retry_count": sub.RetryCount,
			"will_retry":  willRetry,
			"reason":      message,
		}), "recurring charge failed")
	}
	return ChargeOutcome{Success: false, Message: message}, nil
}

// retryBackoff returns the fixed backoff step for the nth consecutive
// failure: +1 day, +3 days, then +7 days.
func retryBackoff(retryCount int) time.Duration {
	switch retryCount {
	case 1:
		return 24 * time.Hour
	case 2:
		return 72 * time.Hour
	default:
		return 168 * time.Hour
	}
}

// CreateSubscriptionInput describes a new recurring billing agreement.
type CreateSubscriptionInput struct {
	SubscriberType string
	SubscriberID   string
	Amount         decimal.Decimal
	Currency       string
	IntervalMonths int
	TotalCycles    *int
	TokenID        *uuid.UUID
	TrialEndsAt    *time.Time
	StartAt        *time.Time
}

// Create registers a subscription and schedules its first charge.
func (s *Service) Create(ctx context.Context, input CreateSubscriptionInput) (*models.Subscription, error) {
	if input.SubscriberType == "" || input.SubscriberID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscriber reference is required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.IntervalMonths <= 0 {
		input.IntervalMonths = 1
	}
	if input.Currency == "" {
		input.Currency = "ILS"
	}
	if input.TotalCycles != nil && *input.TotalCycles <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total cycles must be positive when set")
	}

	now := s.nowFn()
	firstCharge := now
	if input.StartAt != nil && input.StartAt.After(now) {
		firstCharge = *input.StartAt
	}
	if input.TrialEndsAt != nil && input.TrialEndsAt.After(firstCharge) {
		firstCharge = *input.TrialEndsAt
	}

	sub := &models.Subscription{
		SubscriberType: input.SubscriberType,
		SubscriberID:   input.SubscriberID,
		Amount:         input.Amount,
		Currency:       input.Currency,
		Status:         enums.SubscriptionStatusActive,
		IntervalMonths: input.IntervalMonths,
		TotalCycles:    input.TotalCycles,
		TokenID:        input.TokenID,
		NextChargeAt:   &firstCharge,
		TrialEndsAt:    input.TrialEndsAt,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Cancel moves the subscription to its canceled terminal state. Canceling an
// already-canceled subscription is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.repo.LockSubscriptionTx(tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.Status == enums.SubscriptionStatusCanceled {
			return nil
		}
		if !sub.CanBeCancelled() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("subscription in status %s cannot be canceled", sub.Status))
		}

		now := s.nowFn()
		sub.Status = enums.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		sub.NextChargeAt = nil
		if reason != "" {
			sub.CancelReason = &reason
		}
		if err := s.repo.SaveSubscriptionTx(tx, sub); err != nil {
			return err
		}

		if s.outbox == nil {
			return nil
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionCanceled,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   sub.ID,
			Data: payloads.SubscriptionCanceledEvent{
				SubscriptionID: sub.ID,
				CanceledAt:     now,
				Reason:         reason,
			},
			OccurredAt: now,
		})
	})
}

// Pause suspends charging. Only allowed when the pause flag is enabled.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	if !s.settings.AllowPause(ctx) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "pausing subscriptions is disabled")
	}
	return s.transition(ctx, id, enums.SubscriptionStatusPaused)
}

// Resume reactivates a paused subscription. A next charge in the past is
// pulled forward so the subscriber is not back-charged for paused time.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.repo.LockSubscriptionTx(tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.Status == enums.SubscriptionStatusActive {
			return nil
		}
		if !sub.Status.CanTransitionTo(enums.SubscriptionStatusActive) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("subscription in status %s cannot be resumed", sub.Status))
		}
		sub.Status = enums.SubscriptionStatusActive
		now := s.nowFn()
		if sub.NextChargeAt == nil || sub.NextChargeAt.Before(now) {
			sub.NextChargeAt = &now
		}
		return s.repo.SaveSubscriptionTx(tx, sub)
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target enums.SubscriptionStatus) error {
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.repo.LockSubscriptionTx(tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		if sub.Status == target {
			return nil
		}
		if !sub.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move subscription from %s to %s", sub.Status, target))
		}
		sub.Status = target
		return s.repo.SaveSubscriptionTx(tx, sub)
	})
}

// ApplyGatewayPayment reconciles an asynchronous payment notification with
// the local transaction record. The webhook and the synchronous charge
// response may race; terminal rows are never transitioned again.
func (s *Service) ApplyGatewayPayment(ctx context.Context, update webhooks.PaymentUpdate) error {
	var txn *models.Transaction
	var err error
	if update.PaymentID != 0 {
		txn, err = s.repo.FindTransactionByPaymentID(ctx, update.PaymentID)
		if err != nil {
			return err
		}
	}
	if txn == nil && update.OrderID != "" {
		txn, err = s.repo.FindTransactionByOrderID(ctx, update.OrderID)
		if err != nil {
			return err
		}
	}

	target := enums.TransactionStatusFailed
	if update.Valid {
		target = enums.TransactionStatusCompleted
	}

	if txn != nil {
		if txn.Status.IsTerminal() {
			// Already settled through the synchronous path.
			return nil
		}
		txn.Status = target
		if update.PaymentID != 0 && txn.PaymentID == nil {
			txn.PaymentID = &update.PaymentID
		}
		if update.AuthNumber != "" {
			txn.AuthNumber = &update.AuthNumber
		}
		if update.Message != "" && target == enums.TransactionStatusFailed {
			txn.ErrorMessage = &update.Message
		}
		if len(update.Raw) > 0 {
			txn.RawResponse = update.Raw
		}
		return s.repo.SaveTransaction(ctx, txn)
	}

	// No local row yet: the webhook arrived before (or without) a
	// synchronous charge. Record it for reconciliation.
	created := models.Transaction{
		Status:      target,
		Amount:      decimal.Zero,
		Currency:    "ILS",
		RawResponse: update.Raw,
	}
	if update.PaymentID != 0 {
		created.PaymentID = &update.PaymentID
	}
	if update.OrderID != "" {
		created.OrderID = &update.OrderID
	}
	if update.AuthNumber != "" {
		created.AuthNumber = &update.AuthNumber
	}
	if update.Message != "" && target == enums.TransactionStatusFailed {
		created.ErrorMessage = &update.Message
	}
	if err := s.repo.CreateTransaction(ctx, &created); err != nil {
		if db.IsUniqueViolation(err, "ux_transactions_payment_id") {
			// Concurrent delivery already recorded it.
			return nil
		}
		return err
	}
	return nil
}

// ApplyRemoteStatus mirrors a gateway-side subscription lifecycle change.
func (s *Service) ApplyRemoteStatus(ctx context.Context, update webhooks.SubscriptionUpdate) error {
	sub, err := s.repo.FindSubscriptionByRecurringID(ctx, update.RecurringID)
	if err != nil {
		return err
	}
	if sub == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "recurring_id", update.RecurringID),
				"subscription event for unknown recurring reference, acknowledged")
		}
		return nil
	}

	switch strings.ToLower(update.Status) {
	case "canceled", "cancelled":
		return s.Cancel(ctx, sub.ID, update.Reason)
	case "paused", "suspended":
		// Remote state is authoritative: the local pause flag does not gate it.
		return s.transition(ctx, sub.ID, enums.SubscriptionStatusPaused)
	case "active", "activated", "resumed":
		return s.Resume(ctx, sub.ID)
	case "expired":
		return s.transition(ctx, sub.ID, enums.SubscriptionStatusExpired)
	default:
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "remote_status", update.Status),
				"unrecognized subscription status, acknowledged")
		}
		return nil
	}
}

// Get returns a subscription by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return sub, nil
}

// List returns subscriptions newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status *enums.SubscriptionStatus, limit, offset int) ([]models.Subscription, int64, error) {
	return s.repo.ListSubscriptions(ctx, status, limit, offset)
}

// TransactionPage is one page of a subscription's charge history.
type TransactionPage struct {
	Transactions []models.Transaction
	NextCursor   string
}

// ListTransactions returns a cursor-paginated page of the subscription's
// transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, id uuid.UUID, params pagination.Params) (TransactionPage, error) {
	sub, err := s.repo.FindSubscriptionByID(ctx, id)
	if err != nil {
		return TransactionPage{}, err
	}
	if sub == nil {
		return TransactionPage{}, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return TransactionPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.repo.ListTransactionsBySubscription(ctx, id, cursor, params.Limit)
	if err != nil {
		return TransactionPage{}, err
	}

	page := TransactionPage{}
	limit := pagination.NormalizeLimit(params.Limit)
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
		rows = rows[:limit]
	}
	page.Transactions = rows
	return page, nil
}
