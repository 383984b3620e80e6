package models

import "time"

// Setting is a process-wide configuration value keyed by namespace and key.
type Setting struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`
	Namespace string    `gorm:"not null;uniqueIndex:idx_setting_key" json:"namespace"`
	Key       string    `gorm:"not null;uniqueIndex:idx_setting_key" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"` // JSON encoded
}
