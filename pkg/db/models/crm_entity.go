package models

import (
	"encoding/json"
	"time"
)

// CRMEntity is the local read model of a SUMIT CRM record, keyed by the
// remote folder/entity pair. Properties is the raw remote field map.
type CRMEntity struct {
	FolderID   int64           `gorm:"column:folder_id;primaryKey;autoIncrement:false"`
	EntityID   int64           `gorm:"column:entity_id;primaryKey;autoIncrement:false"`
	Name       *string         `gorm:"column:name"`
	Properties json.RawMessage `gorm:"column:properties;type:jsonb"`
	DeletedAt  *time.Time      `gorm:"column:deleted_at"`
	SyncedAt   time.Time       `gorm:"column:synced_at;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
