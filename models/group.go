package models

import "time"

// Group is a community space; challenges and posts always belong to one.
type Group struct {
	ID          string        `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name        string        `json:"name" gorm:"not null"`
	Slug        string        `json:"slug" gorm:"uniqueIndex;not null"`
	Description string        `json:"description"`
	OwnerID     string        `json:"owner_id" gorm:"type:varchar(36);index;not null"`
	CreatedAt   time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
	Members     []GroupMember `json:"members,omitempty" gorm:"foreignKey:GroupID"`

	MemberCount int64 `json:"member_count,omitempty" gorm:"-"`
}

type GroupMember struct {
	ID       string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GroupID  string    `json:"group_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_group_member"`
	UserID   string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_group_member;index"`
	IsOwner  bool      `json:"is_owner" gorm:"default:false"`
	JoinedAt time.Time `json:"joined_at" gorm:"autoCreateTime"`
}
