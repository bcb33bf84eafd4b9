package models

import "time"

// Setting is a DB-level override for a configuration key. Values stored here
// take precedence over env-config defaults (see internal/settings).
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
