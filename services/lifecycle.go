package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mealmood-community/models"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// WinnerCount is how many top positions are announced when a challenge closes.
const WinnerCount = 3

type LifecycleService struct {
	DB *gorm.DB
}

func NewLifecycleService(db *gorm.DB) *LifecycleService {
	return &LifecycleService{DB: db}
}

// LifecycleReport counts what one transition pass changed.
type LifecycleReport struct {
	Normalized int64
	Opened     int64
	ClosedID   string
	Winners    int
}

var lowerTitle = cases.Lower(language.English)

// WinnerMessage is the congratulation sent to each podium user.
func WinnerMessage(title string) string {
	return fmt.Sprintf("congratulation you have won the %s keep it up", lowerTitle.String(title))
}

// TransitionChallenges advances challenge statuses for now. Transitions only move
// forward: unknown statuses with a future start become upcoming, due upcoming
// challenges open, and at most one expired open challenge closes per call.
// The close, its podium and the pending announcement commit together.
func (s *LifecycleService) TransitionChallenges(ctx context.Context, now time.Time) (LifecycleReport, error) {
	var rep LifecycleReport
	now = now.UTC()
	db := s.DB.WithContext(ctx)

	res := db.Model(&models.Challenge{}).
		Where("start_date > ? AND status NOT IN ?", now, []models.ChallengeStatus{
			models.ChallengeStatusUpcoming, models.ChallengeStatusOpen, models.ChallengeStatusClose,
		}).
		Update("status", models.ChallengeStatusUpcoming)
	if res.Error != nil {
		return rep, &TransientStorageError{Op: "normalize upcoming challenges", Err: res.Error}
	}
	rep.Normalized = res.RowsAffected

	// Only inside the window; an upcoming row whose end already passed stays upcoming.
	res = db.Model(&models.Challenge{}).
		Where("status = ? AND start_date <= ? AND end_date > ?", models.ChallengeStatusUpcoming, now, now).
		Update("status", models.ChallengeStatusOpen)
	if res.Error != nil {
		return rep, &TransientStorageError{Op: "open challenges", Err: res.Error}
	}
	rep.Opened = res.RowsAffected

	closed, winners, err := s.closeOne(ctx, now)
	if err != nil {
		return rep, err
	}
	rep.ClosedID = closed
	rep.Winners = winners
	return rep, nil
}

func (s *LifecycleService) closeOne(ctx context.Context, now time.Time) (string, int, error) {
	var closedID string
	var winners int

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ch models.Challenge
		err := tx.Where("status = ? AND end_date <= ?", models.ChallengeStatusOpen, now).
			Order("end_date ASC").Order("id ASC").
			First(&ch).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&models.Challenge{}).
			Where("id = ? AND status = ?", ch.ID, models.ChallengeStatusOpen).
			Update("status", models.ChallengeStatusClose)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// closed by a concurrent pass
			return nil
		}

		ranked, err := rankChallenge(ctx, tx, ch.ID)
		if err != nil {
			return err
		}
		ann := models.ChallengeAnnouncement{
			ID:          uuid.NewString(),
			ChallengeID: ch.ID,
			Message:     WinnerMessage(ch.Title),
			Status:      models.AnnouncementStatusPending,
		}
		if err := tx.Omit("Winners").Create(&ann).Error; err != nil {
			return err
		}
		for _, r := range ranked {
			if r.Position > WinnerCount {
				break
			}
			w := models.ChallengeWinner{
				ID:             uuid.NewString(),
				AnnouncementID: ann.ID,
				ChallengeID:    ch.ID,
				UserID:         r.UserID,
				Position:       r.Position,
				Rank:           r.Rank,
				RankScore:      r.RankScore,
			}
			if err := tx.Create(&w).Error; err != nil {
				return err
			}
			winners++
		}
		closedID = ch.ID
		return nil
	})
	if err != nil {
		return "", 0, storageErr("close challenge", err, "challenge", "")
	}
	if closedID != "" {
		log.Printf("[Challenge] 🏁 closed %s with %d winner(s)", closedID, winners)
	}
	return closedID, winners, nil
}
