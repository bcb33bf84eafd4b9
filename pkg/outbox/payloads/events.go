package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionChargedEvent is emitted after a recurring charge clears.
type SubscriptionChargedEvent struct {
	SubscriptionID  uuid.UUID       `json:"subscription_id"`
	TransactionID   uuid.UUID       `json:"transaction_id"`
	PaymentID       *int64          `json:"payment_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	CompletedCycles int             `json:"completed_cycles"`
	NextChargeAt    *time.Time      `json:"next_charge_at,omitempty"`
}

// SubscriptionChargeFailedEvent is emitted when a charge attempt fails.
type SubscriptionChargeFailedEvent struct {
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	TransactionID  uuid.UUID  `json:"transaction_id"`
	RetryCount     int        `json:"retry_count"`
	WillRetry      bool       `json:"will_retry"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	Reason         string     `json:"reason,omitempty"`
}

// SubscriptionCanceledEvent is emitted when a subscription is canceled.
type SubscriptionCanceledEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CanceledAt     time.Time `json:"canceled_at"`
	Reason         string    `json:"reason,omitempty"`
}

// SubscriptionCompletedEvent is emitted when the final cycle is charged.
type SubscriptionCompletedEvent struct {
	SubscriptionID  uuid.UUID `json:"subscription_id"`
	CompletedCycles int       `json:"completed_cycles"`
	CompletedAt     time.Time `json:"completed_at"`
}

// DocumentCreatedEvent is emitted when an accounting document is recorded.
type DocumentCreatedEvent struct {
	DocumentID       uuid.UUID   `json:"document_id"`
	RemoteDocumentID int64       `json:"remote_document_id"`
	Type             string      `json:"type"`
	SubscriptionIDs  []uuid.UUID `json:"subscription_ids,omitempty"`
}

// WebhookFailedEvent is emitted when a webhook exhausts its retries.
type WebhookFailedEvent struct {
	WebhookID  uuid.UUID `json:"webhook_id"`
	Source     string    `json:"source"`
	EventType  string    `json:"event_type"`
	RetryCount int       `json:"retry_count"`
	LastError  string    `json:"last_error,omitempty"`
}
