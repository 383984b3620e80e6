package models

import (
	"time"

	"gorm.io/gorm"
)

// Group is the stored form of a group record. System holds the group's
// system data as JSON text exactly as it was last written; legacy shapes
// are upgraded when the record is loaded, not here.
type Group struct {
	ID        string         `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	System    string         `gorm:"type:text;not null;default:'{}'" json:"system"`
}
