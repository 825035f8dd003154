package models

import "time"

// User is an API account (a chat-bridge worker or an operator), not a
// tracked trainer; trainers are identified by chat-platform user IDs.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time `gorm:"index"`
	Username       string     `gorm:"size:255;not null;unique"`
	HashedPassword []byte     `gorm:"not null"`
	Role           string     `gorm:"size:32;not null;default:user"`
}

const (
	RoleAdmin = "administrator"
	RoleUser  = "user"
)
