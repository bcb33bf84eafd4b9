package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sumitpay/billing-backend/pkg/enums"
)

// Document mirrors an accounting document (invoice/receipt) generated by the
// gateway. A consolidated document may cover cycles of several subscriptions.
type Document struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DocumentID  int64              `gorm:"column:document_id;not null;uniqueIndex:ux_documents_remote_id"`
	Type        enums.DocumentType `gorm:"column:type;type:document_type;not null;default:'invoice'"`
	CustomerID  *int64             `gorm:"column:customer_id;index"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency    string             `gorm:"column:currency;not null;default:'ILS'"`
	IsDraft     bool               `gorm:"column:is_draft;not null;default:false"`
	Emailed     bool               `gorm:"column:emailed;not null;default:false"`
	EmailedAt   *time.Time         `gorm:"column:emailed_at"`
	RawResponse json.RawMessage    `gorm:"column:raw_response;type:jsonb"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`

	Subscriptions []Subscription `gorm:"many2many:document_subscriptions"`
}
