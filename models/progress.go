package models

import "time"

// ProgressEntry is one stored trainer-card observation, keyed by
// (user_id, badge_level). Superseding a key replaces the value columns in
// place; entries are never deleted outside an administrative reset.
type ProgressEntry struct {
	ID              uint `gorm:"primaryKey"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	UserID          string    `gorm:"size:64;not null;uniqueIndex:idx_user_badge"`
	BadgeLevel      int       `gorm:"not null;uniqueIndex:idx_user_badge"`
	TrainerName     string    `gorm:"size:64;not null"`
	Playtime        string    `gorm:"size:16;not null"` // H:MM as shown on the card
	PokedexCount    int       `gorm:"not null"`
	SourceEventTime time.Time `gorm:"not null;index"`
	SourceMessageID string    `gorm:"size:128;not null"`
}
