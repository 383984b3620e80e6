package models

import (
	"time"

	"gorm.io/gorm"
)

// Actor is a stored game actor. Actors with a non-empty Pack live in a
// compendium and are not part of the world.
type Actor struct {
	ID        string         `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"not null" json:"name"`
	Type      string         `gorm:"type:varchar(20);not null;index" json:"type"`
	Pack      string         `gorm:"index" json:"pack,omitempty"`
}
