package models

import "time"

// Post is a group feed entry, optionally tagged to one of the group's challenges.
type Post struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string    `json:"user_id" gorm:"type:varchar(36);not null;index"`
	GroupID     string    `json:"group_id" gorm:"type:varchar(36);not null;index"`
	ChallengeID *string   `json:"challenge_id,omitempty" gorm:"type:varchar(36);index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description"`
	ImageURL    string    `json:"image_url,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LikesCount    int64 `json:"likes_count" gorm:"-"`
	DislikesCount int64 `json:"dislikes_count" gorm:"-"`
}

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

// PostReaction holds at most one reaction per (post, user).
type PostReaction struct {
	ID        string       `json:"id" gorm:"primaryKey;type:varchar(36)"`
	PostID    string       `json:"post_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_post_reaction"`
	UserID    string       `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_post_reaction"`
	Kind      ReactionKind `json:"kind" gorm:"type:varchar(8);not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"autoCreateTime"`
}
