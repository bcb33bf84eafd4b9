package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sumitpay/billing-backend/pkg/enums"
)

// WebhookEvent is the write-ahead audit record for every inbound webhook.
// The row is created before any processing runs and is never deleted; the
// async processor mutates Status/RetryCount/ErrorMessage only.
type WebhookEvent struct {
	ID                uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Source            enums.WebhookSource `gorm:"column:source;type:webhook_source;not null;index"`
	EventType         string              `gorm:"column:event_type;not null;index"`
	Payload           json.RawMessage     `gorm:"column:payload;type:jsonb;not null"`
	RawBody           []byte              `gorm:"column:raw_body"`
	Headers           json.RawMessage     `gorm:"column:headers;type:jsonb"`
	SourceIP          string              `gorm:"column:source_ip"`
	Signature         *string             `gorm:"column:signature"`
	SignatureVerified bool                `gorm:"column:signature_verified;not null;default:false"`
	Status            enums.WebhookStatus `gorm:"column:status;type:webhook_status;not null;default:'pending';index"`
	RetryCount        int                 `gorm:"column:retry_count;not null;default:0"`
	ProcessedAt       *time.Time          `gorm:"column:processed_at"`
	ErrorMessage      *string             `gorm:"column:error_message"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
