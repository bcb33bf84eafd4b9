package webhooks

import (
	"context"
	"encoding/json"
)

// Recognized sumit event types. Anything else falls through to inference
// from payload fields.
const (
	EventCardCreated  = "card.created"
	EventCardUpdated  = "card.updated"
	EventCardDeleted  = "card.deleted"
	EventCardArchived = "card.archived"
)

// PaymentUpdate carries the fields a gateway payment notification can
// reconcile onto a local transaction.
type PaymentUpdate struct {
	PaymentID  int64
	AuthNumber string
	Valid      bool
	OrderID    string
	DocumentID *int64
	CustomerID *int64
	Status     string
	Message    string
	Raw        json.RawMessage
}

// SubscriptionUpdate carries a remote subscription lifecycle change.
type SubscriptionUpdate struct {
	RecurringID string
	Status      string
	Reason      string
}

// CardEvent carries a card.* token vault change.
type CardEvent struct {
	Action    string
	Token     string
	GatewayID *int64
	Last4     string
	Brand     string
	ExpMonth  int
	ExpYear   int
	OwnerType string
	OwnerID   string
}

// EntityEvent carries a CRM folder/entity sync notification.
type EntityEvent struct {
	FolderID   int64
	EntityID   int64
	Action     string
	Properties json.RawMessage
}

// Appliers mutate domain state in response to webhook events. Implemented by
// the billing, token and CRM services; the processor only routes.
type (
	TransactionApplier interface {
		ApplyGatewayPayment(ctx context.Context, update PaymentUpdate) error
	}

	SubscriptionApplier interface {
		ApplyRemoteStatus(ctx context.Context, update SubscriptionUpdate) error
	}

	TokenApplier interface {
		ApplyCardEvent(ctx context.Context, event CardEvent) error
	}

	CRMApplier interface {
		ApplyEntityEvent(ctx context.Context, event EntityEvent) error
	}
)
