package models

import "time"

type NotificationKind string

const (
	NotificationKindGeneral         NotificationKind = "general"
	NotificationKindStreakReminder  NotificationKind = "streak_reminder"
	NotificationKindChallengeWinner NotificationKind = "challenge_winner"
)

// Notification is the durable copy of every message pushed to a user.
// IDs are UUIDv7 so ordering by ID follows creation order.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"type:varchar(36);index;not null" json:"user_id"`
	Kind      NotificationKind `gorm:"type:varchar(32);not null;default:'general'" json:"kind"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
}
