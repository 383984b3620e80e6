package models

import (
	"time"

	"gorm.io/gorm"
)

// UserRole represents a user's role in the game world
type UserRole string

const (
	RoleGamemaster UserRole = "gamemaster"
	RolePlayer     UserRole = "player"
)

// User represents a user in the system
type User struct {
	ID           uint           `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name"`
	Role         UserRole       `gorm:"type:varchar(20);default:'player'" json:"role"`
}
