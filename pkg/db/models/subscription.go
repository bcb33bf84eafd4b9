package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sumitpay/billing-backend/pkg/enums"
)

// Subscription persists one recurring billing agreement.
//
// Subscriber is polymorphic: SubscriberType names the owning entity kind and
// SubscriberID its identifier in that entity's own keyspace.
type Subscription struct {
	ID              uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriberType  string                   `gorm:"column:subscriber_type;not null;index:idx_subscriptions_subscriber"`
	SubscriberID    string                   `gorm:"column:subscriber_id;not null;index:idx_subscriptions_subscriber"`
	Amount          decimal.Decimal          `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency        string                   `gorm:"column:currency;not null;default:'ILS'"`
	Status          enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'pending';index"`
	IntervalMonths  int                      `gorm:"column:interval_months;not null;default:1"`
	TotalCycles     *int                     `gorm:"column:total_cycles"`
	CompletedCycles int                      `gorm:"column:completed_cycles;not null;default:0"`
	RecurringID     *string                  `gorm:"column:recurring_id;index"`
	TokenID         *uuid.UUID               `gorm:"column:token_id;type:uuid"`
	NextChargeAt    *time.Time               `gorm:"column:next_charge_at;index"`
	LastChargedAt   *time.Time               `gorm:"column:last_charged_at"`
	TrialEndsAt     *time.Time               `gorm:"column:trial_ends_at"`
	ExpiresAt       *time.Time               `gorm:"column:expires_at"`
	RetryCount      int                      `gorm:"column:retry_count;not null;default:0"`
	CancelReason    *string                  `gorm:"column:cancel_reason"`
	CanceledAt      *time.Time               `gorm:"column:canceled_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       gorm.DeletedAt           `gorm:"column:deleted_at;index"`

	Documents []Document `gorm:"many2many:document_subscriptions"`
}

// CyclesRemaining reports whether another cycle may be charged.
// Unlimited subscriptions (TotalCycles nil) always have cycles remaining.
func (s *Subscription) CyclesRemaining() bool {
	if s.TotalCycles == nil {
		return true
	}
	return s.CompletedCycles < *s.TotalCycles
}

// CanBeCancelled reports whether the subscription is in a cancellable state.
func (s *Subscription) CanBeCancelled() bool {
	return !s.Status.IsTerminal()
}
