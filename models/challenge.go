package models

import "time"

type ChallengeStatus string

const (
	ChallengeStatusUpcoming ChallengeStatus = "upcoming"
	ChallengeStatusOpen     ChallengeStatus = "open"
	ChallengeStatusClose    ChallengeStatus = "close"
)

// Valid reports whether s is one of the three lifecycle states.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengeStatusUpcoming, ChallengeStatusOpen, ChallengeStatusClose:
		return true
	}
	return false
}

// Challenge is a time-boxed competition inside a group.
// Status is persisted and only advanced by the lifecycle pass (upcoming → open → close).
type Challenge struct {
	ID          string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	GroupID     string          `json:"group_id" gorm:"type:varchar(36);not null;index"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description" gorm:"not null"`
	ImageURL    string          `json:"challenge_image,omitempty" gorm:"type:text"`
	StartDate   time.Time       `json:"start_date" gorm:"not null;index"`
	EndDate     time.Time       `json:"end_date" gorm:"not null;index"`
	Status      ChallengeStatus `json:"status" gorm:"type:varchar(16);not null;default:'upcoming';index"`
	CreatedAt   time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	Participants []ChallengeParticipant `json:"-" gorm:"foreignKey:ChallengeID"`

	// Calculated fields (not stored in DB)
	MemberCount int64 `json:"member_count" gorm:"-"`
	IsJoined    bool  `json:"is_joined" gorm:"-"`
}

// ChallengeParticipant is one row of the participant set; the unique index keeps it a set.
type ChallengeParticipant struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ChallengeID string    `json:"challenge_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_challenge_participant"`
	UserID      string    `json:"user_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_challenge_participant;index"`
	JoinedAt    time.Time `json:"joined_at" gorm:"autoCreateTime"`
}

type AnnouncementStatus string

const (
	AnnouncementStatusPending    AnnouncementStatus = "pending"
	AnnouncementStatusDispatched AnnouncementStatus = "dispatched"
)

// ChallengeAnnouncement is the outbox row written in the same transaction as the close transition.
type ChallengeAnnouncement struct {
	ID           string             `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ChallengeID  string             `json:"challenge_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	Message      string             `json:"message" gorm:"type:text;not null"`
	Status       AnnouncementStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	Attempts     int                `json:"attempts" gorm:"default:0"`
	LastError    string             `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt    time.Time          `json:"created_at" gorm:"autoCreateTime"`
	DispatchedAt *time.Time         `json:"dispatched_at,omitempty"`

	Winners []ChallengeWinner `json:"winners,omitempty" gorm:"foreignKey:AnnouncementID"`
}

// ChallengeWinner freezes the podium at close time so retries notify the same users.
type ChallengeWinner struct {
	ID             string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AnnouncementID string     `json:"announcement_id" gorm:"type:varchar(36);not null;index"`
	ChallengeID    string     `json:"challenge_id" gorm:"type:varchar(36);not null;index"`
	UserID         string     `json:"user_id" gorm:"type:varchar(36);not null"`
	Position       int        `json:"position"`
	Rank           int        `json:"rank"`
	RankScore      float64    `json:"rank_score"`
	NotifiedAt     *time.Time `json:"notified_at,omitempty"`
}
