package billing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/internal/webhooks"
	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	pkgerrors "github.com/sumitpay/billing-backend/pkg/errors"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/sumit"
)

func setupBillingTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A plain ":memory:" DSN gives every pooled connection its own empty
	// database; the service mixes tx and non-tx connections, so use a
	// per-test named shared in-memory database instead.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
  id TEXT PRIMARY KEY,
  subscriber_type TEXT NOT NULL,
  subscriber_id TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'ILS',
  status TEXT NOT NULL DEFAULT 'pending',
  interval_months INTEGER NOT NULL DEFAULT 1,
  total_cycles INTEGER,
  completed_cycles INTEGER NOT NULL DEFAULT 0,
  recurring_id TEXT,
  token_id TEXT,
  next_charge_at DATETIME,
  last_charged_at DATETIME,
  trial_ends_at DATETIME,
  expires_at DATETIME,
  retry_count INTEGER NOT NULL DEFAULT 0,
  cancel_reason TEXT,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT,
  subscription_id TEXT,
  payment_id INTEGER UNIQUE,
  auth_number TEXT,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'ILS',
  status TEXT NOT NULL DEFAULT 'pending',
  payment_method TEXT NOT NULL DEFAULT 'credit_card',
  card_last4 TEXT,
  card_brand TEXT,
  card_exp_month INTEGER,
  card_exp_year INTEGER,
  error_message TEXT,
  raw_request TEXT,
  raw_response TEXT,
  is_test INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS payment_tokens (
  id TEXT PRIMARY KEY,
  token TEXT NOT NULL UNIQUE,
  owner_type TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  gateway_id INTEGER,
  card_last4 TEXT,
  card_brand TEXT,
  card_exp_month INTEGER,
  card_exp_year INTEGER,
  is_default INTEGER NOT NULL DEFAULT 0,
  archived_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

type fakeGateway struct {
	results []*sumit.ChargeResult
	errs    []error
	calls   int
	reqs    []*sumit.ChargeRequest
}

func (f *fakeGateway) Charge(_ context.Context, req *sumit.ChargeRequest) (*sumit.ChargeResult, error) {
	idx := f.calls
	f.calls++
	f.reqs = append(f.reqs, req)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < len(f.results) {
		return f.results[idx], nil
	}
	return approvedCharge(555+int64(idx), "AUTH1"), nil
}

func approvedCharge(paymentID int64, authNumber string) *sumit.ChargeResult {
	raw := json.RawMessage(`{"Status":0}`)
	return &sumit.ChargeResult{
		Envelope: &sumit.Envelope{Status: 0, Raw: raw},
		Data: sumit.ChargeData{
			Payment: &sumit.Payment{
				ID:           paymentID,
				AuthNumber:   authNumber,
				ValidPayment: true,
			},
		},
	}
}

func declinedCharge(message string) *sumit.ChargeResult {
	raw := json.RawMessage(`{"Status":0}`)
	return &sumit.ChargeResult{
		Envelope: &sumit.Envelope{Status: 0, Raw: raw},
		Data: sumit.ChargeData{
			Payment: &sumit.Payment{
				ID:                556,
				ValidPayment:      false,
				StatusDescription: message,
			},
		},
	}
}

type fakeSettings struct {
	retry      bool
	createDoc  bool
	allowPause bool
	maxRetries int
}

func (f *fakeSettings) RetryFailedCharges(context.Context) bool  { return f.retry }
func (f *fakeSettings) CreateOrderDocument(context.Context) bool { return f.createDoc }
func (f *fakeSettings) AllowPause(context.Context) bool          { return f.allowPause }
func (f *fakeSettings) MaxChargeRetries(context.Context) int     { return f.maxRetries }

type fakeDocuments struct {
	recorded int
	err      error
}

func (f *fakeDocuments) RecordChargeDocument(context.Context, *gorm.DB, *models.Subscription, *sumit.ChargeResult) error {
	if f.err != nil {
		return f.err
	}
	f.recorded++
	return nil
}

type billingFixture struct {
	conn     *gorm.DB
	repo     *Repository
	gateway  *fakeGateway
	settings *fakeSettings
	docs     *fakeDocuments
	service  *Service
	now      time.Time
}

func newBillingFixture(t *testing.T, mutate func(p *ServiceParams)) *billingFixture {
	t.Helper()

	conn := setupBillingTestDB(t)
	f := &billingFixture{
		conn:     conn,
		repo:     NewRepository(conn),
		gateway:  &fakeGateway{},
		settings: &fakeSettings{retry: true, maxRetries: 3},
		docs:     &fakeDocuments{},
		now:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	params := ServiceParams{
		Repo:      f.repo,
		Client:    db.NewFromGorm(conn),
		Gateway:   f.gateway,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Settings:  f.settings,
		Documents: f.docs,
		Now:       func() time.Time { return f.now },
	}
	if mutate != nil {
		mutate(&params)
	}

	service, err := NewService(params)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *billingFixture) seedSubscription(t *testing.T, mutate func(sub *models.Subscription)) uuid.UUID {
	t.Helper()

	recurring := "9001"
	due := f.now.Add(-time.Hour)
	sub := models.Subscription{
		ID:             uuid.New(),
		SubscriberType: "customer",
		SubscriberID:   "cust-1",
		Amount:         decimal.NewFromInt(100),
		Currency:       "ILS",
		Status:         enums.SubscriptionStatusActive,
		IntervalMonths: 1,
		RecurringID:    &recurring,
		NextChargeAt:   &due,
	}
	if mutate != nil {
		mutate(&sub)
	}
	require.NoError(t, f.conn.Create(&sub).Error)
	return sub.ID
}

func (f *billingFixture) subscription(t *testing.T, id uuid.UUID) *models.Subscription {
	t.Helper()
	sub, err := f.repo.FindSubscriptionByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub)
	return sub
}

func (f *billingFixture) transactions(t *testing.T, subscriptionID uuid.UUID) []models.Transaction {
	t.Helper()
	var rows []models.Transaction
	require.NoError(t, f.conn.Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").Find(&rows).Error)
	return rows
}

func (f *billingFixture) outboxEvents(t *testing.T, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", eventType).Find(&rows).Error)
	return rows
}

func TestRecurringChargeSuccess(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.True(t, outcome.Success)

	txns := f.transactions(t, id)
	require.Len(t, txns, 1)
	require.Equal(t, enums.TransactionStatusCompleted, txns[0].Status)
	require.NotNil(t, txns[0].PaymentID)
	require.EqualValues(t, 555, *txns[0].PaymentID)
	require.NotNil(t, txns[0].AuthNumber)
	require.Equal(t, "AUTH1", *txns[0].AuthNumber)
	require.True(t, txns[0].Amount.Equal(decimal.NewFromInt(100)))

	sub := f.subscription(t, id)
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.Equal(t, 1, sub.CompletedCycles)
	require.Equal(t, 0, sub.RetryCount)
	require.NotNil(t, sub.LastChargedAt)
	require.NotNil(t, sub.NextChargeAt)
	require.True(t, sub.NextChargeAt.Equal(f.now.AddDate(0, 1, 0)))

	require.Len(t, f.outboxEvents(t, enums.EventSubscriptionCharged), 1)
}

func TestRecurringChargeNotDueIsSkipped(t *testing.T) {
	f := newBillingFixture(t, nil)
	future := f.now.Add(time.Hour)
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.NextChargeAt = &future
	})

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Zero(t, f.gateway.calls)
	require.Empty(t, f.transactions(t, id))
}

func TestRecurringChargeNoDoubleChargeOnOverlap(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	first, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.True(t, first.Success)

	// Overlapping scheduler run: the claim re-check sees the advanced
	// next_charge_at and skips.
	second, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.False(t, second.Success)

	require.Equal(t, 1, f.gateway.calls)
	require.Len(t, f.transactions(t, id), 1)
	require.Equal(t, 1, f.subscription(t, id).CompletedCycles)
}

func TestRecurringChargeDeclineSchedulesRetry(t *testing.T) {
	f := newBillingFixture(t, nil)
	f.gateway.results = []*sumit.ChargeResult{declinedCharge("Insufficient funds")}
	id := f.seedSubscription(t, nil)

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Equal(t, "Insufficient funds", outcome.Message)

	txns := f.transactions(t, id)
	require.Len(t, txns, 1)
	require.Equal(t, enums.TransactionStatusFailed, txns[0].Status)
	require.NotNil(t, txns[0].ErrorMessage)

	sub := f.subscription(t, id)
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.Equal(t, 1, sub.RetryCount)
	require.NotNil(t, sub.NextChargeAt)
	require.True(t, sub.NextChargeAt.Equal(f.now.Add(24*time.Hour)))

	events := f.outboxEvents(t, enums.EventSubscriptionChargeFailed)
	require.Len(t, events, 1)
	require.Contains(t, string(events[0].Payload), `"will_retry":true`)
}

func TestRecurringChargeBackoffSteps(t *testing.T) {
	require.Equal(t, 24*time.Hour, retryBackoff(1))
	require.Equal(t, 72*time.Hour, retryBackoff(2))
	require.Equal(t, 168*time.Hour, retryBackoff(3))
	require.Equal(t, 168*time.Hour, retryBackoff(7))
}

func TestRecurringChargeRetryExhaustion(t *testing.T) {
	f := newBillingFixture(t, nil)
	f.gateway.results = []*sumit.ChargeResult{declinedCharge("declined")}
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.RetryCount = 2
	})

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.False(t, outcome.Success)

	sub := f.subscription(t, id)
	require.Equal(t, enums.SubscriptionStatusFailed, sub.Status)
	require.Equal(t, 3, sub.RetryCount)
	require.Nil(t, sub.NextChargeAt)

	// Failed subscriptions never show up in another due run.
	due, err := f.repo.ListDue(context.Background(), f.now.Add(240*time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, due)

	events := f.outboxEvents(t, enums.EventSubscriptionChargeFailed)
	require.Len(t, events, 1)
	require.Contains(t, string(events[0].Payload), `"will_retry":false`)
}

func TestRecurringChargeRetryDisabledFailsImmediately(t *testing.T) {
	f := newBillingFixture(t, nil)
	f.settings.retry = false
	f.gateway.results = []*sumit.ChargeResult{declinedCharge("declined")}
	id := f.seedSubscription(t, nil)

	_, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionStatusFailed, f.subscription(t, id).Status)
}

func TestRecurringChargeTransportErrorFollowsRetryPolicy(t *testing.T) {
	f := newBillingFixture(t, nil)
	f.gateway.errs = []error{errors.New("dial tcp: connection refused")}
	id := f.seedSubscription(t, nil)

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.False(t, outcome.Success)

	sub := f.subscription(t, id)
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.Equal(t, 1, sub.RetryCount)

	txns := f.transactions(t, id)
	require.Len(t, txns, 1)
	require.Equal(t, enums.TransactionStatusFailed, txns[0].Status)
	require.Contains(t, *txns[0].ErrorMessage, "connection refused")
}

func TestCycleAccountingReachesTerminalCompleted(t *testing.T) {
	f := newBillingFixture(t, nil)
	total := 3
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.TotalCycles = &total
	})

	for i := 0; i < 3; i++ {
		due := f.now.Add(-time.Hour)
		require.NoError(t, f.conn.Model(&models.Subscription{}).
			Where("id = ?", id).
			Update("next_charge_at", due).Error)
		outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
		require.NoError(t, err)
		if i < 3 {
			require.True(t, outcome.Success, "cycle %d", i+1)
		}
	}

	sub := f.subscription(t, id)
	require.Equal(t, 3, sub.CompletedCycles)
	require.Equal(t, enums.SubscriptionStatusCompleted, sub.Status)
	require.True(t, sub.Status.IsTerminal())
	require.Nil(t, sub.NextChargeAt)
	require.Len(t, f.outboxEvents(t, enums.EventSubscriptionCompleted), 1)

	// A fourth due check never reaches the gateway.
	calls := f.gateway.calls
	results, err := f.service.ProcessDueSubscriptions(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)
	require.Equal(t, calls, f.gateway.calls)
}

func TestProcessDueSubscriptionsIsolatesFailures(t *testing.T) {
	f := newBillingFixture(t, nil)
	f.gateway.results = []*sumit.ChargeResult{
		declinedCharge("declined"),
		approvedCharge(600, "AUTH2"),
	}
	firstDue := f.now.Add(-2 * time.Hour)
	failing := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.NextChargeAt = &firstDue
	})
	healthy := f.seedSubscription(t, nil)

	results, err := f.service.ProcessDueSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.False(t, results[failing].Success)
	require.True(t, results[healthy].Success)
	require.Equal(t, 1, f.subscription(t, healthy).CompletedCycles)
}

func TestChargeUsesVaultedTokenWhenNoRecurringReference(t *testing.T) {
	f := newBillingFixture(t, nil)
	token := models.PaymentToken{
		ID:        uuid.New(),
		Token:     "tok_vault_1",
		OwnerType: "customer",
		OwnerID:   "cust-1",
		IsDefault: true,
	}
	require.NoError(t, f.conn.Create(&token).Error)
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.RecurringID = nil
	})

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.True(t, outcome.Success)

	require.Len(t, f.gateway.reqs, 1)
	require.NotNil(t, f.gateway.reqs[0].PaymentMethod)
	require.Equal(t, "tok_vault_1", f.gateway.reqs[0].PaymentMethod.CreditCardToken)
}

func TestChargeWithoutAnyReferenceFails(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.RecurringID = nil
	})

	outcome, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.False(t, outcome.Success)
	require.Zero(t, f.gateway.calls)

	sub := f.subscription(t, id)
	require.Equal(t, 1, sub.RetryCount)
	txns := f.transactions(t, id)
	require.Len(t, txns, 1)
	require.Contains(t, *txns[0].ErrorMessage, "no recurring reference")
}

func TestChargeRecordsDocumentWhenEnabled(t *testing.T) {
	f := newBillingFixture(t, nil)
	f.settings.createDoc = true
	id := f.seedSubscription(t, nil)

	_, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 1, f.docs.recorded)
}

func TestChargeSkipsDocumentWhenDisabled(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	_, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)
	require.Zero(t, f.docs.recorded)
}

func TestChargeNowBypassesDueWindow(t *testing.T) {
	f := newBillingFixture(t, nil)
	future := f.now.Add(48 * time.Hour)
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.NextChargeAt = &future
	})

	outcome, err := f.service.ChargeNow(context.Background(), id)
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, 1, f.subscription(t, id).CompletedCycles)
}

func TestChargeNowRejectsTerminalSubscription(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.Status = enums.SubscriptionStatusCanceled
	})

	_, err := f.service.ChargeNow(context.Background(), id)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	require.Zero(t, f.gateway.calls)
}

func TestCancelIsIdempotentAndEmitsOnce(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	require.NoError(t, f.service.Cancel(context.Background(), id, "customer request"))
	require.NoError(t, f.service.Cancel(context.Background(), id, "customer request"))

	sub := f.subscription(t, id)
	require.Equal(t, enums.SubscriptionStatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	require.NotNil(t, sub.CancelReason)
	require.Nil(t, sub.NextChargeAt)
	require.Len(t, f.outboxEvents(t, enums.EventSubscriptionCanceled), 1)
}

func TestCancelRejectsCompletedSubscription(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, func(sub *models.Subscription) {
		sub.Status = enums.SubscriptionStatusCompleted
	})

	err := f.service.Cancel(context.Background(), id, "")
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestPauseRequiresFeatureFlag(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	err := f.service.Pause(context.Background(), id)
	require.Error(t, err)

	f.settings.allowPause = true
	require.NoError(t, f.service.Pause(context.Background(), id))
	require.Equal(t, enums.SubscriptionStatusPaused, f.subscription(t, id).Status)

	require.NoError(t, f.service.Resume(context.Background(), id))
	sub := f.subscription(t, id)
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.NextChargeAt)
	require.False(t, sub.NextChargeAt.Before(f.now))
}

func TestCreateSubscriptionDefaults(t *testing.T) {
	f := newBillingFixture(t, nil)

	sub, err := f.service.Create(context.Background(), CreateSubscriptionInput{
		SubscriberType: "customer",
		SubscriberID:   "cust-9",
		Amount:         decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	require.Equal(t, "ILS", sub.Currency)
	require.Equal(t, 1, sub.IntervalMonths)
	require.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.NextChargeAt)
	require.True(t, sub.NextChargeAt.Equal(f.now))

	_, err = f.service.Create(context.Background(), CreateSubscriptionInput{
		SubscriberType: "customer",
		SubscriberID:   "cust-9",
		Amount:         decimal.Zero,
	})
	require.Error(t, err)
}

func TestApplyGatewayPaymentIsIdempotentAfterSyncCharge(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	_, err := f.service.ProcessRecurringCharge(context.Background(), id)
	require.NoError(t, err)

	// The provider delivers the same payment asynchronously afterwards.
	err = f.service.ApplyGatewayPayment(context.Background(), webhooks.PaymentUpdate{
		PaymentID:  555,
		AuthNumber: "AUTH1",
		Valid:      true,
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.conn.Model(&models.Transaction{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.Equal(t, 1, f.subscription(t, id).CompletedCycles)
}

func TestApplyGatewayPaymentCompletesPendingTransaction(t *testing.T) {
	f := newBillingFixture(t, nil)
	orderID := "ORD-1"
	txn := models.Transaction{
		ID:      uuid.New(),
		OrderID: &orderID,
		Amount:  decimal.NewFromInt(100),
		Status:  enums.TransactionStatusPending,
	}
	require.NoError(t, f.conn.Create(&txn).Error)

	err := f.service.ApplyGatewayPayment(context.Background(), webhooks.PaymentUpdate{
		PaymentID:  777,
		OrderID:    "ORD-1",
		AuthNumber: "AUTH9",
		Valid:      true,
	})
	require.NoError(t, err)

	var stored models.Transaction
	require.NoError(t, f.conn.Where("id = ?", txn.ID).First(&stored).Error)
	require.Equal(t, enums.TransactionStatusCompleted, stored.Status)
	require.NotNil(t, stored.PaymentID)
	require.EqualValues(t, 777, *stored.PaymentID)
}

func TestApplyGatewayPaymentCreatesRowForUnknownPayment(t *testing.T) {
	f := newBillingFixture(t, nil)

	err := f.service.ApplyGatewayPayment(context.Background(), webhooks.PaymentUpdate{
		PaymentID: 888,
		Valid:     false,
		Message:   "declined",
	})
	require.NoError(t, err)

	var stored models.Transaction
	require.NoError(t, f.conn.Where("payment_id = ?", 888).First(&stored).Error)
	require.Equal(t, enums.TransactionStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestApplyRemoteStatusCancelsSubscription(t *testing.T) {
	f := newBillingFixture(t, nil)
	id := f.seedSubscription(t, nil)

	err := f.service.ApplyRemoteStatus(context.Background(), webhooks.SubscriptionUpdate{
		RecurringID: "9001",
		Status:      "cancelled",
		Reason:      "chargeback",
	})
	require.NoError(t, err)
	require.Equal(t, enums.SubscriptionStatusCanceled, f.subscription(t, id).Status)

	// Replay of the same event stays a no-op.
	err = f.service.ApplyRemoteStatus(context.Background(), webhooks.SubscriptionUpdate{
		RecurringID: "9001",
		Status:      "cancelled",
	})
	require.NoError(t, err)
	require.Len(t, f.outboxEvents(t, enums.EventSubscriptionCanceled), 1)
}

func TestApplyRemoteStatusUnknownReferenceAcks(t *testing.T) {
	f := newBillingFixture(t, nil)

	err := f.service.ApplyRemoteStatus(context.Background(), webhooks.SubscriptionUpdate{
		RecurringID: "missing",
		Status:      "canceled",
	})
	require.NoError(t, err)
}
