package models

import "time"

// StreakRecord is the per-user mood streak header.
// LastCheckInAt mirrors the newest entry and doubles as the optimistic-concurrency guard.
type StreakRecord struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string     `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty" gorm:"index"`
	EntryCount    int        `json:"entry_count" gorm:"not null;default:0"`
	LifetimeCount int        `json:"lifetime_count" gorm:"not null;default:0"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Entries []StreakEntry `json:"entries,omitempty" gorm:"foreignKey:StreakRecordID"`
}

// StreakEntry is one accepted daily check-in. Append-only; removed wholesale on reset.
type StreakEntry struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	StreakRecordID string    `json:"streak_record_id" gorm:"type:varchar(36);not null;index"`
	MoodGoalID     string    `json:"mood_goal_id" gorm:"type:varchar(36);not null"`
	CheckedInAt    time.Time `json:"checked_in_at" gorm:"not null;index"`
}
