package models

import "time"

// ProcessedMessage ledgers source message IDs that have been merged, making
// replay (history backfill, crash recovery) a no-op.
type ProcessedMessage struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	MessageID string `gorm:"size:128;not null;uniqueIndex"`
}
