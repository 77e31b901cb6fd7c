package models

import "time"

const DefaultMoodEmoji = "https://emoji.aranja.com/static/emoji-data/img-apple-160/1f60a.png"

// MoodGoal is an entry of the mood catalogue users check in against.
type MoodGoal struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string    `json:"name" gorm:"not null;uniqueIndex"`
	Description string    `json:"description" gorm:"not null"`
	Emoji       string    `json:"emoji" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DefaultMoodGoals seeds an empty catalogue.
var DefaultMoodGoals = []MoodGoal{
	{Name: "Improve Focus", Description: "Meals that keep you sharp through the day"},
	{Name: "Reduce Stress", Description: "Comforting, calming food choices"},
	{Name: "Boost Energy", Description: "Light meals with lasting energy"},
	{Name: "Better Sleep", Description: "Evening meals that help you wind down"},
}
