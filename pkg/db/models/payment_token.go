package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentToken stores a vaulted card reference. The raw PAN never touches this
// system; Token is the gateway's single-use-safe reference.
type PaymentToken struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Token        string     `gorm:"column:token;not null;uniqueIndex:ux_payment_tokens_token"`
	OwnerType    string     `gorm:"column:owner_type;not null;index:idx_payment_tokens_owner"`
	OwnerID      string     `gorm:"column:owner_id;not null;index:idx_payment_tokens_owner"`
	GatewayID    *int64     `gorm:"column:gateway_id"`
	CardLast4    *string    `gorm:"column:card_last4"`
	CardBrand    *string    `gorm:"column:card_brand"`
	CardExpMonth *int       `gorm:"column:card_exp_month"`
	CardExpYear  *int       `gorm:"column:card_exp_year"`
	IsDefault    bool       `gorm:"column:is_default;not null;default:false"`
	ArchivedAt   *time.Time `gorm:"column:archived_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
