package webhooks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	"github.com/sumitpay/billing-backend/pkg/outbox"
)

type processorFixture struct {
	conn          *gorm.DB
	repo          *Repository
	transactions  *fakeTransactionApplier
	subscriptions *fakeSubscriptionApplier
	tokens        *fakeTokenApplier
	crm           *fakeCRMApplier
	processor     *Processor
}

func newProcessorFixture(t *testing.T, mutate func(p *ProcessorParams)) *processorFixture {
	t.Helper()

	conn := setupWebhooksTestDB(t)
	f := &processorFixture{
		conn:          conn,
		repo:          NewRepository(conn),
		transactions:  &fakeTransactionApplier{},
		subscriptions: &fakeSubscriptionApplier{},
		tokens:        &fakeTokenApplier{},
		crm:           &fakeCRMApplier{},
	}

	params := ProcessorParams{
		Repo:          f.repo,
		Client:        db.NewFromGorm(conn),
		Outbox:        outbox.NewService(outbox.NewRepository(conn), nil),
		Transactions:  f.transactions,
		Subscriptions: f.subscriptions,
		Tokens:        f.tokens,
		CRM:           f.crm,
	}
	if mutate != nil {
		mutate(&params)
	}

	processor, err := NewProcessor(params)
	require.NoError(t, err)
	f.processor = processor
	return f
}

func (f *processorFixture) seed(t *testing.T, event models.WebhookEvent) uuid.UUID {
	t.Helper()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = enums.WebhookStatusPending
	}
	if event.Payload == nil {
		event.Payload = json.RawMessage(`{}`)
	}
	require.NoError(t, f.conn.Create(&event).Error)
	return event.ID
}

func (f *processorFixture) row(t *testing.T, id uuid.UUID) *models.WebhookEvent {
	t.Helper()
	stored, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	return stored
}

func TestProcessCardEventDispatchesToTokens(t *testing.T) {
	f := newProcessorFixture(t, nil)
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "card.updated",
		Payload:   json.RawMessage(`{"Token":"tok_1","LastDigits":"4242","CustomerID":12}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Len(t, f.tokens.events, 1)
	require.Equal(t, "updated", f.tokens.events[0].Action)
	require.Equal(t, "tok_1", f.tokens.events[0].Token)
	require.Equal(t, "4242", f.tokens.events[0].Last4)
	require.Equal(t, "customer", f.tokens.events[0].OwnerType)
	require.Equal(t, "12", f.tokens.events[0].OwnerID)

	stored := f.row(t, id)
	require.Equal(t, enums.WebhookStatusProcessed, stored.Status)
	require.NotNil(t, stored.ProcessedAt)
}

func TestProcessIsIdempotentOnProcessedRow(t *testing.T) {
	f := newProcessorFixture(t, nil)
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "card.created",
		Payload:   json.RawMessage(`{"Token":"tok_1"}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))
	require.NoError(t, f.processor.Process(context.Background(), id))

	// the second delivery of the same event must not re-apply it
	require.Len(t, f.tokens.events, 1)
}

func TestProcessUnknownWebhookIsSwallowed(t *testing.T) {
	f := newProcessorFixture(t, nil)
	require.NoError(t, f.processor.Process(context.Background(), uuid.New()))
}

func TestProcessSubscriptionEventDispatchesStatus(t *testing.T) {
	f := newProcessorFixture(t, nil)
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "subscription.canceled",
		Payload:   json.RawMessage(`{"RecurringCustomerItemID":"rec_77","Reason":"customer request"}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Len(t, f.subscriptions.updates, 1)
	require.Equal(t, "rec_77", f.subscriptions.updates[0].RecurringID)
	require.Equal(t, "canceled", f.subscriptions.updates[0].Status)
	require.Equal(t, "customer request", f.subscriptions.updates[0].Reason)
	require.Equal(t, enums.WebhookStatusProcessed, f.row(t, id).Status)
}

func TestProcessPaymentEventDispatchesToTransactions(t *testing.T) {
	f := newProcessorFixture(t, nil)
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "payment.updated",
		Payload:   json.RawMessage(`{"Data":{"x":1},"Payment":{"ID":555,"AuthNumber":"AUTH1","ValidPayment":true,"StatusDescription":"ok"},"documentid":777}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Len(t, f.transactions.updates, 1)
	update := f.transactions.updates[0]
	require.EqualValues(t, 555, update.PaymentID)
	require.Equal(t, "AUTH1", update.AuthNumber)
	require.True(t, update.Valid)
	require.NotNil(t, update.DocumentID)
	require.EqualValues(t, 777, *update.DocumentID)
}

func TestProcessInformationalEventAcksWithoutMutation(t *testing.T) {
	f := newProcessorFixture(t, nil)
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "sumit.event",
		Payload:   json.RawMessage(`{"hello":true}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Empty(t, f.transactions.updates)
	require.Equal(t, enums.WebhookStatusProcessed, f.row(t, id).Status)
}

func TestProcessCRMEventDispatchesToEntities(t *testing.T) {
	f := newProcessorFixture(t, nil)
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceCRM,
		EventType: "update",
		Payload:   json.RawMessage(`{"FolderID":42,"EntityID":9001,"Action":"update","Properties":{"stock":3}}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Len(t, f.crm.events, 1)
	require.EqualValues(t, 42, f.crm.events[0].FolderID)
	require.EqualValues(t, 9001, f.crm.events[0].EntityID)
	require.Equal(t, "update", f.crm.events[0].Action)
	require.JSONEq(t, `{"stock":3}`, string(f.crm.events[0].Properties))
}

func TestProcessBitEventRequiresPaymentReference(t *testing.T) {
	f := newProcessorFixture(t, nil)

	withRef := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceBit,
		EventType: "bit.payment",
		Payload:   json.RawMessage(`{"orderid":"ORD-9","documentid":777}`),
	})
	require.NoError(t, f.processor.Process(context.Background(), withRef))
	require.Len(t, f.transactions.updates, 1)
	require.Equal(t, "ORD-9", f.transactions.updates[0].OrderID)

	withoutRef := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceBit,
		EventType: "bit.payment",
		Payload:   json.RawMessage(`{"status":"done"}`),
	})
	require.NoError(t, f.processor.Process(context.Background(), withoutRef))
	require.Len(t, f.transactions.updates, 1)

	stored := f.row(t, withoutRef)
	require.Equal(t, enums.WebhookStatusFailed, stored.Status)
	require.Equal(t, 1, stored.RetryCount)
}

func TestProcessRejectsInvalidSignature(t *testing.T) {
	body := []byte(`{"Token":"tok_1"}`)
	badSig := signHex("wrong", body)

	f := newProcessorFixture(t, func(p *ProcessorParams) {
		p.WebhookSecret = "topsecret"
		p.Trust = &fakeTrust{}
	})
	id := f.seed(t, models.WebhookEvent{
		Source:            enums.WebhookSourceSumit,
		EventType:         "card.created",
		Payload:           json.RawMessage(body),
		RawBody:           body,
		Signature:         &badSig,
		SignatureVerified: true,
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Empty(t, f.tokens.events)
	stored := f.row(t, id)
	require.Equal(t, enums.WebhookStatusFailed, stored.Status)
	require.False(t, stored.SignatureVerified)
	require.NotNil(t, stored.ErrorMessage)
	require.Equal(t, "invalid webhook signature", *stored.ErrorMessage)
}

func TestProcessTrustedUnsignedWebhookApplies(t *testing.T) {
	body := []byte(`{"Token":"tok_1"}`)

	f := newProcessorFixture(t, func(p *ProcessorParams) {
		p.WebhookSecret = "topsecret"
		p.Trust = &fakeTrust{trust: true}
	})
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "card.created",
		Payload:   json.RawMessage(body),
		RawBody:   body,
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	require.Len(t, f.tokens.events, 1)
	require.Equal(t, enums.WebhookStatusProcessed, f.row(t, id).Status)
}

func TestProcessApplierFailureMarksFailed(t *testing.T) {
	f := newProcessorFixture(t, nil)
	f.tokens.err = errTest
	id := f.seed(t, models.WebhookEvent{
		Source:    enums.WebhookSourceSumit,
		EventType: "card.created",
		Payload:   json.RawMessage(`{"Token":"tok_1"}`),
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	stored := f.row(t, id)
	require.Equal(t, enums.WebhookStatusFailed, stored.Status)
	require.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.ErrorMessage)

	var outboxCount int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Count(&outboxCount).Error)
	require.Zero(t, outboxCount)
}

func TestProcessExhaustedRetriesEmitsFailureEvent(t *testing.T) {
	f := newProcessorFixture(t, func(p *ProcessorParams) {
		p.MaxRetries = 3
	})
	f.tokens.err = errTest
	id := f.seed(t, models.WebhookEvent{
		Source:     enums.WebhookSourceSumit,
		EventType:  "card.created",
		Payload:    json.RawMessage(`{"Token":"tok_1"}`),
		RetryCount: 2,
	})

	require.NoError(t, f.processor.Process(context.Background(), id))

	stored := f.row(t, id)
	require.Equal(t, enums.WebhookStatusFailed, stored.Status)
	require.Equal(t, 3, stored.RetryCount)

	var events []models.OutboxEvent
	require.NoError(t, f.conn.Where("event_type = ?", enums.EventWebhookFailed).Find(&events).Error)
	require.Len(t, events, 1)
	require.Equal(t, enums.AggregateWebhook, events[0].AggregateType)
	require.Equal(t, id, events[0].AggregateID)
	require.Contains(t, string(events[0].Payload), id.String())
}
