package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a local snapshot of the profile service's user.
// Populated by the profile sync worker; the community features only read it.
type User struct {
	ID                string  `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserName          string  `gorm:"index" json:"user_name"`
	Email             string  `json:"email,omitempty"`
	FirstName         *string `json:"first_name,omitempty"`
	LastName          *string `json:"last_name,omitempty"`
	ProfilePictureURL *string `json:"profile_picture_url,omitempty"`

	// Last mood goal picked on check-in
	MoodGoalID *string `gorm:"type:varchar(36)" json:"mood_goal_id,omitempty"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// DisplayName falls back to the username when no real name is set.
func (u User) DisplayName() string {
	name := ""
	if u.FirstName != nil {
		name = *u.FirstName
	}
	if u.LastName != nil && *u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += *u.LastName
	}
	if name == "" {
		return u.UserName
	}
	return name
}
