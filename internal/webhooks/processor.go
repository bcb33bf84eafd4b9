package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/db"
	"github.com/sumitpay/billing-backend/pkg/db/models"
	"github.com/sumitpay/billing-backend/pkg/enums"
	"github.com/sumitpay/billing-backend/pkg/logger"
	"github.com/sumitpay/billing-backend/pkg/metrics"
	"github.com/sumitpay/billing-backend/pkg/outbox"
	"github.com/sumitpay/billing-backend/pkg/outbox/payloads"
)

// TrustResolver reports whether unsigned webhooks may mutate state.
type TrustResolver interface {
	TrustUnsignedWebhooks(ctx context.Context) bool
}

// Processor applies audited webhook events to domain state. Processing the
// same webhook id twice is a no-op on the second application.
type Processor struct {
	repo          *Repository
	client        *db.Client
	outbox        *outbox.Service
	transactions  TransactionApplier
	subscriptions SubscriptionApplier
	tokens        TokenApplier
	crm           CRMApplier
	secret        string
	trust         TrustResolver
	maxRetries    int
	metrics       *metrics.WebhookMetrics
	logg          *logger.Logger
}

// ProcessorParams collects the processor dependencies.
type ProcessorParams struct {
	Repo          *Repository
	Client        *db.Client
	Outbox        *outbox.Service
	Transactions  TransactionApplier
	Subscriptions SubscriptionApplier
	Tokens        TokenApplier
	CRM           CRMApplier
	WebhookSecret string
	Trust         TrustResolver
	MaxRetries    int
	Metrics       *metrics.WebhookMetrics
	Logger        *logger.Logger
}

func NewProcessor(p ProcessorParams) (*Processor, error) {
	if p.Repo == nil {
		return nil, errors.New("webhook repository is required")
	}
	if p.Client == nil {
		return nil, errors.New("db client is required")
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Processor{
		repo:          p.Repo,
		client:        p.Client,
		outbox:        p.Outbox,
		transactions:  p.Transactions,
		subscriptions: p.Subscriptions,
		tokens:        p.Tokens,
		crm:           p.CRM,
		secret:        p.WebhookSecret,
		trust:         p.Trust,
		maxRetries:    maxRetries,
		metrics:       p.Metrics,
		logg:          p.Logger,
	}, nil
}

// Process loads the audit record and applies it. Errors from domain appliers
// are recorded on the row, never returned to the transport that acked the
// delivery; only infrastructure failures propagate.
func (p *Processor) Process(ctx context.Context, webhookID uuid.UUID) error {
	event, err := p.repo.FindByID(ctx, webhookID)
	if err != nil {
		return err
	}
	if event == nil {
		if p.logg != nil {
			p.logg.Warn(p.logg.WithWebhookID(ctx, webhookID.String()), "webhook record not found")
		}
		return nil
	}
	if event.Status == enums.WebhookStatusProcessed {
		return nil
	}

	if p.logg != nil {
		ctx = p.logg.WithWebhookID(ctx, event.ID.String())
		ctx = p.logg.WithFields(ctx, map[string]any{
			"webhook_source": event.Source,
			"event_type":     event.EventType,
		})
	}

	if !p.signatureAllows(ctx, event) {
		// Security-relevant: recorded, never applied.
		if p.logg != nil {
			p.logg.Warn(ctx, "webhook signature rejected, state mutation skipped")
		}
		return p.fail(ctx, event, "invalid webhook signature")
	}

	if err := p.apply(ctx, event); err != nil {
		return p.fail(ctx, event, err.Error())
	}

	if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
		return err
	}
	p.metrics.IncProcessed(event.Source.String(), "processed")
	return nil
}

// signatureAllows re-verifies the HMAC over the stored raw body. With no
// secret configured every delivery passes; with a secret configured an
// unverifiable delivery only passes when unsigned sources are trusted.
func (p *Processor) signatureAllows(ctx context.Context, event *models.WebhookEvent) bool {
	if p.secret == "" {
		return true
	}
	signature := ""
	if event.Signature != nil {
		signature = *event.Signature
	}
	if VerifySignature(p.secret, event.RawBody, signature) {
		return true
	}
	if err := p.repo.MarkSignatureUnverified(ctx, event.ID); err != nil && p.logg != nil {
		p.logg.Error(ctx, "flag unverified signature", err)
	}
	return p.trust != nil && p.trust.TrustUnsignedWebhooks(ctx)
}

func (p *Processor) apply(ctx context.Context, event *models.WebhookEvent) error {
	switch event.Source {
	case enums.WebhookSourceSumit:
		return p.applySumit(ctx, event)
	case enums.WebhookSourceCRM:
		return p.applyCRM(ctx, event)
	case enums.WebhookSourceBit:
		return p.applyBit(ctx, event)
	default:
		return errors.New("unknown webhook source")
	}
}

func (p *Processor) applySumit(ctx context.Context, event *models.WebhookEvent) error {
	switch {
	case strings.HasPrefix(event.EventType, "card."):
		if p.tokens == nil {
			return errors.New("token applier unavailable")
		}
		cardEvent, err := parseCardEvent(event.Payload, event.EventType)
		if err != nil {
			return err
		}
		return p.tokens.ApplyCardEvent(ctx, cardEvent)

	case strings.HasPrefix(event.EventType, "subscription."):
		if p.subscriptions == nil {
			return errors.New("subscription applier unavailable")
		}
		update, err := parseSubscriptionUpdate(event.Payload, event.EventType)
		if err != nil {
			return err
		}
		return p.subscriptions.ApplyRemoteStatus(ctx, update)

	default:
		update, ok, err := parsePaymentUpdate(event.Payload)
		if err != nil {
			return err
		}
		if !ok {
			// Informational event with nothing to reconcile.
			if p.logg != nil {
				p.logg.Info(ctx, "webhook carries no reconcilable fields, acknowledged")
			}
			return nil
		}
		if p.transactions == nil {
			return errors.New("transaction applier unavailable")
		}
		return p.transactions.ApplyGatewayPayment(ctx, update)
	}
}

func (p *Processor) applyCRM(ctx context.Context, event *models.WebhookEvent) error {
	if p.crm == nil {
		return errors.New("crm applier unavailable")
	}
	entityEvent, err := parseEntityEvent(event.Payload)
	if err != nil {
		return err
	}
	return p.crm.ApplyEntityEvent(ctx, entityEvent)
}

func (p *Processor) applyBit(ctx context.Context, event *models.WebhookEvent) error {
	update, ok, err := parsePaymentUpdate(event.Payload)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("bit payload carries no payment reference")
	}
	if p.transactions == nil {
		return errors.New("transaction applier unavailable")
	}
	return p.transactions.ApplyGatewayPayment(ctx, update)
}

// fail records the error on the row; when retries are exhausted the
// webhook.failed event is emitted atomically with the final row update.
func (p *Processor) fail(ctx context.Context, event *models.WebhookEvent, message string) error {
	p.metrics.IncProcessed(event.Source.String(), "failed")

	exhausted := event.RetryCount+1 >= p.maxRetries
	if !exhausted || p.outbox == nil {
		return p.repo.MarkFailed(ctx, event.ID, message)
	}

	return p.client.WithTx(ctx, func(tx *gorm.DB) error {
		err := tx.Model(&models.WebhookEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]any{
				"status":        enums.WebhookStatusFailed,
				"error_message": message,
				"retry_count":   gorm.Expr("retry_count + 1"),
			}).Error
		if err != nil {
			return err
		}
		return p.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWebhookFailed,
			AggregateType: enums.AggregateWebhook,
			AggregateID:   event.ID,
			Data: payloads.WebhookFailedEvent{
				WebhookID:  event.ID,
				Source:     event.Source.String(),
				EventType:  event.EventType,
				RetryCount: event.RetryCount + 1,
				LastError:  message,
			},
			OccurredAt: time.Now(),
		})
	})
}

func parsePaymentUpdate(payload json.RawMessage) (PaymentUpdate, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return PaymentUpdate{}, false, err
	}
	// Payment sections sometimes arrive nested under Data.Payment.
	if nested, ok := fields["Payment"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			for k, v := range inner {
				if _, exists := fields[k]; !exists {
					fields[k] = v
				}
			}
		}
	}

	update := PaymentUpdate{Raw: payload}
	paymentID, hasPayment := firstInt64(fields, "PaymentID", "payment_id", "ID")
	update.PaymentID = paymentID
	update.AuthNumber = firstString(fields, "AuthNumber", "auth_number")
	update.OrderID = firstString(fields, "orderid", "OrderID", "order_id")
	update.Status = firstString(fields, "Status", "status")
	update.Message = firstString(fields, "StatusDescription", "message")
	update.Valid = firstBool(fields, "ValidPayment", "valid")
	if docID, ok := firstInt64(fields, "documentid", "DocumentID"); ok {
		update.DocumentID = &docID
	}
	if custID, ok := firstInt64(fields, "customerid", "CustomerID"); ok {
		update.CustomerID = &custID
	}

	hasReference := hasPayment || update.OrderID != "" || update.DocumentID != nil
	return update, hasReference, nil
}

func parseSubscriptionUpdate(payload json.RawMessage, eventType string) (SubscriptionUpdate, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return SubscriptionUpdate{}, err
	}
	update := SubscriptionUpdate{
		RecurringID: firstString(fields, "RecurringCustomerItemID", "recurring_id", "RecurringID"),
		Status:      strings.TrimPrefix(eventType, "subscription."),
		Reason:      firstString(fields, "Reason", "reason"),
	}
	if update.RecurringID == "" {
		return SubscriptionUpdate{}, errors.New("subscription event missing recurring reference")
	}
	return update, nil
}

func parseCardEvent(payload json.RawMessage, eventType string) (CardEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return CardEvent{}, err
	}
	event := CardEvent{
		Action: strings.TrimPrefix(eventType, "card."),
		Token:  firstString(fields, "Token", "token", "CreditCard_Token"),
		Last4:  firstString(fields, "LastDigits", "CreditCard_LastDigits", "last4"),
		Brand:  firstString(fields, "Brand", "brand"),
	}
	if gatewayID, ok := firstInt64(fields, "PaymentMethodID", "ID"); ok {
		event.GatewayID = &gatewayID
	}
	if month, ok := firstInt64(fields, "ExpirationMonth", "CreditCard_ExpirationMonth"); ok {
		event.ExpMonth = int(month)
	}
	if year, ok := firstInt64(fields, "ExpirationYear", "CreditCard_ExpirationYear"); ok {
		event.ExpYear = int(year)
	}
	event.OwnerType = firstString(fields, "owner_type", "OwnerType")
	event.OwnerID = firstString(fields, "owner_id", "OwnerID")
	if event.OwnerID == "" {
		if custID, ok := firstInt64(fields, "CustomerID", "customerid"); ok {
			event.OwnerType = "customer"
			event.OwnerID = strconv.FormatInt(custID, 10)
		}
	}
	if event.Token == "" && event.GatewayID == nil {
		return CardEvent{}, errors.New("card event missing token reference")
	}
	return event, nil
}

func parseEntityEvent(payload json.RawMessage) (EntityEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return EntityEvent{}, err
	}
	event := EntityEvent{
		Action: firstString(fields, "Action", "action"),
	}
	if folderID, ok := firstInt64(fields, "FolderID", "Folder"); ok {
		event.FolderID = folderID
	}
	if entityID, ok := firstInt64(fields, "EntityID", "ID"); ok {
		event.EntityID = entityID
	}
	if props, ok := fields["Properties"]; ok {
		event.Properties = props
	}
	if event.FolderID == 0 && event.EntityID == 0 {
		return EntityEvent{}, errors.New("entity event missing identifiers")
	}
	return event, nil
}

func firstBool(fields map[string]json.RawMessage, keys ...string) bool {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var value bool
		if err := json.Unmarshal(raw, &value); err == nil {
			return value
		}
	}
	return false
}
