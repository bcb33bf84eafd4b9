package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumitpay/billing-backend/pkg/enums"
)

// Transaction records one charge attempt against the gateway.
// RawRequest/RawResponse are retained verbatim for audits and disputes.
type Transaction struct {
	ID             uuid.UUID               `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        *string                 `gorm:"column:order_id;index"`
	SubscriptionID *uuid.UUID              `gorm:"column:subscription_id;type:uuid;index"`
	PaymentID      *int64                  `gorm:"column:payment_id;uniqueIndex:ux_transactions_payment_id"`
	AuthNumber     *string                 `gorm:"column:auth_number"`
	Amount         decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       string                  `gorm:"column:currency;not null;default:'ILS'"`
	Status         enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'pending';index"`
	PaymentMethod  string                  `gorm:"column:payment_method;not null;default:'credit_card'"`
	CardLast4      *string                 `gorm:"column:card_last4"`
	CardBrand      *string                 `gorm:"column:card_brand"`
	CardExpMonth   *int                    `gorm:"column:card_exp_month"`
	CardExpYear    *int                    `gorm:"column:card_exp_year"`
	ErrorMessage   *string                 `gorm:"column:error_message"`
	RawRequest     json.RawMessage         `gorm:"column:raw_request;type:jsonb"`
	RawResponse    json.RawMessage         `gorm:"column:raw_response;type:jsonb"`
	IsTest         bool                    `gorm:"column:is_test;not null;default:false"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
