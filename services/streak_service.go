package services

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"mealmood-community/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ReminderMessage = "One small mood update today keeps the streak alive! 😊"

const checkInAttempts = 3

type StreakService struct {
	DB         *gorm.DB
	Suppressor ReminderSuppressor
	Notifier   Notifier

	BatchSize int
	Workers   int
}

func NewStreakService(db *gorm.DB, suppressor ReminderSuppressor, notifier Notifier) *StreakService {
	return &StreakService{DB: db, Suppressor: suppressor, Notifier: notifier, BatchSize: 200, Workers: 8}
}

type CheckInResult struct {
	Accepted      bool       `json:"accepted"`
	Appended      bool       `json:"appended"`
	StreakCount   int        `json:"streak_count"`
	LastCheckInAt *time.Time `json:"last_check_in_at,omitempty"`
	MoodGoalID    string     `json:"mood_goal_id"`
}

// storedTime drops what the database cannot keep, so a value read back compares equal.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// SubmitMoodCheckIn records today's mood. A check-in on the same UTC day, or
// within 24h of the latest one, is accepted without appending.
func (s *StreakService) SubmitMoodCheckIn(ctx context.Context, userID, moodGoalID string, now time.Time) (*CheckInResult, error) {
	now = storedTime(now)
	if err := requireUser(ctx, s.DB, userID); err != nil {
		return nil, err
	}
	if err := s.requireMoodGoal(ctx, moodGoalID); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("mood_goal_id", moodGoalID).Error; err != nil {
		return nil, storageErr("update user mood goal", err, "user", userID)
	}

	for attempt := 0; attempt < checkInAttempts; attempt++ {
		res, err := s.tryCheckIn(ctx, userID, moodGoalID, now)
		if errors.Is(err, errCheckInConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if res.Appended {
			if err := s.Suppressor.Clear(ctx, userID); err != nil {
				log.Printf("[Streak] ⚠️ could not clear reminder suppression for %s: %v", userID, err)
			}
		}
		return res, nil
	}
	return nil, &TransientStorageError{Op: "submit mood check-in", Err: errCheckInConflict}
}

var errCheckInConflict = errors.New("streak record changed concurrently")

func (s *StreakService) tryCheckIn(ctx context.Context, userID, moodGoalID string, now time.Time) (*CheckInResult, error) {
	result := &CheckInResult{Accepted: true, MoodGoalID: moodGoalID}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.StreakRecord
		err := tx.Where("user_id = ?", userID).First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = models.StreakRecord{
				ID:            uuid.NewString(),
				UserID:        userID,
				LastCheckInAt: &now,
				EntryCount:    1,
				LifetimeCount: 1,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("Entries").Create(&rec)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errCheckInConflict
			}
			if err := tx.Create(&models.StreakEntry{
				ID:             uuid.NewString(),
				StreakRecordID: rec.ID,
				MoodGoalID:     moodGoalID,
				CheckedInAt:    now,
			}).Error; err != nil {
				return err
			}
			result.Appended = true
			result.StreakCount = 1
			result.LastCheckInAt = &now
			return nil
		}
		if err != nil {
			return err
		}

		if last := rec.LastCheckInAt; last != nil && (IsDuplicateCheckIn(now, *last) || now.Before(*last)) {
			result.StreakCount = rec.EntryCount
			result.LastCheckInAt = last
			return nil
		}

		q := tx.Model(&models.StreakRecord{}).Where("id = ?", rec.ID)
		if rec.LastCheckInAt == nil {
			q = q.Where("last_check_in_at IS NULL")
		} else {
			q = q.Where("last_check_in_at = ?", *rec.LastCheckInAt)
		}
		res := q.Updates(map[string]interface{}{
			"last_check_in_at": now,
			"entry_count":      gorm.Expr("entry_count + 1"),
			"lifetime_count":   gorm.Expr("lifetime_count + 1"),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errCheckInConflict
		}
		if err := tx.Create(&models.StreakEntry{
			ID:             uuid.NewString(),
			StreakRecordID: rec.ID,
			MoodGoalID:     moodGoalID,
			CheckedInAt:    now,
		}).Error; err != nil {
			return err
		}
		result.Appended = true
		result.StreakCount = rec.EntryCount + 1
		result.LastCheckInAt = &now
		return nil
	})
	if errors.Is(err, errCheckInConflict) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("submit mood check-in", err, "streak", userID)
	}
	return result, nil
}

func (s *StreakService) requireMoodGoal(ctx context.Context, moodGoalID string) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.MoodGoal{}).Where("id = ?", moodGoalID).Count(&n).Error; err != nil {
		return storageErr("check mood goal", err, "mood goal", moodGoalID)
	}
	if n == 0 {
		return &InvalidStateError{Reason: "invalid mood goal reference"}
	}
	return nil
}

// GetStreakCount is the length of the user's live streak; 0 before the first check-in.
func (s *StreakService) GetStreakCount(ctx context.Context, userID string) (int, error) {
	if err := requireUser(ctx, s.DB, userID); err != nil {
		return 0, err
	}
	var rec models.StreakRecord
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("load streak", err, "streak", userID)
	}
	return rec.EntryCount, nil
}

// Entries returns the live streak entries, oldest first.
func (s *StreakService) Entries(ctx context.Context, userID string) ([]models.StreakEntry, error) {
	var entries []models.StreakEntry
	err := s.DB.WithContext(ctx).
		Joins("JOIN streak_records ON streak_records.id = streak_entries.streak_record_id").
		Where("streak_records.user_id = ?", userID).
		Order("streak_entries.checked_in_at ASC").Order("streak_entries.id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("load streak entries", err, "streak", userID)
	}
	return entries, nil
}

type MoodLeaderboardEntry struct {
	RankedMoodUser
	UserName    string  `json:"user_name"`
	DisplayName string  `json:"display_name"`
	Picture     *string `json:"profile_picture_url,omitempty"`
}

type MoodLeaderboard struct {
	Page
	Entries []MoodLeaderboardEntry `json:"entries"`
}

// GetGlobalMoodRanking ranks every user by lifetime accepted check-ins.
func (s *StreakService) GetGlobalMoodRanking(ctx context.Context, page, size int) (*MoodLeaderboard, error) {
	type row struct {
		UserID string
		Count  int64
	}
	var rows []row
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Select("users.id AS user_id, COALESCE(streak_records.lifetime_count, 0) AS count").
		Joins("LEFT JOIN streak_records ON streak_records.user_id = users.id").
		Order("users.id ASC").
		Scan(&rows).Error; err != nil {
		return nil, storageErr("load mood counts", err, "streak", "")
	}

	counts := make([]MoodCount, len(rows))
	for i, r := range rows {
		counts[i] = MoodCount{UserID: r.UserID, Count: r.Count}
	}
	ranked := RankByMoodCount(counts)
	p := Paginate(len(ranked), page, size)
	slice := ranked[p.Offset:p.End]

	ids := make([]string, len(slice))
	for i, r := range slice {
		ids[i] = r.UserID
	}
	var users []models.User
	if len(ids) > 0 {
		if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, storageErr("load ranking users", err, "user", "")
		}
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]MoodLeaderboardEntry, len(slice))
	for i, r := range slice {
		u := byID[r.UserID]
		entries[i] = MoodLeaderboardEntry{RankedMoodUser: r, UserName: u.UserName, DisplayName: u.DisplayName(), Picture: u.ProfilePictureURL}
	}
	return &MoodLeaderboard{Page: p, Entries: entries}, nil
}

// ListMoodGoals returns the catalogue, by name.
func (s *StreakService) ListMoodGoals(ctx context.Context) ([]models.MoodGoal, error) {
	var goals []models.MoodGoal
	if err := s.DB.WithContext(ctx).Order("name ASC").Find(&goals).Error; err != nil {
		return nil, storageErr("list mood goals", err, "mood goal", "")
	}
	return goals, nil
}

// SeedMoodGoals fills an empty catalogue with the defaults.
func (s *StreakService) SeedMoodGoals(ctx context.Context) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.MoodGoal{}).Count(&n).Error; err != nil {
		return storageErr("count mood goals", err, "mood goal", "")
	}
	if n > 0 {
		return nil
	}
	goals := make([]models.MoodGoal, len(models.DefaultMoodGoals))
	for i, g := range models.DefaultMoodGoals {
		g.ID = uuid.NewString()
		if g.Emoji == "" {
			g.Emoji = models.DefaultMoodEmoji
		}
		goals[i] = g
	}
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&goals).Error; err != nil {
		return storageErr("seed mood goals", err, "mood goal", "")
	}
	log.Printf("[Streak] 🌱 seeded %d mood goals", len(goals))
	return nil
}

// StreakReport counts what one streak pass did.
type StreakReport struct {
	Scanned  int64
	Reminded int64
	Reset    int64
	Failed   int64
}

type streakCandidate struct {
	UserID        string
	RecordID      *string
	LastCheckInAt *time.Time
}

// EvaluateStreaks walks users in keyset batches, loading only those whose last
// check-in is missing or at least a cadence away from now. One user's failure
// is logged and counted; the pass goes on.
func (s *StreakService) EvaluateStreaks(ctx context.Context, now time.Time) (StreakReport, error) {
	var rep StreakReport
	now = now.UTC()
	batch := s.BatchSize
	if batch <= 0 {
		batch = 200
	}
	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		var page []streakCandidate
		err := s.DB.WithContext(ctx).Model(&models.User{}).
			Select("users.id AS user_id, streak_records.id AS record_id, streak_records.last_check_in_at AS last_check_in_at").
			Joins("LEFT JOIN streak_records ON streak_records.user_id = users.id").
			Where("users.id > ?", cursor).
			Where("streak_records.last_check_in_at IS NULL OR streak_records.last_check_in_at <= ? OR streak_records.last_check_in_at >= ?",
				now.Add(-StreakCadence), now.Add(StreakCadence)).
			Order("users.id ASC").
			Limit(batch).
			Scan(&page).Error
		if err != nil {
			return rep, &TransientStorageError{Op: "load streak candidates", Err: err}
		}
		if len(page) == 0 {
			return rep, nil
		}

		var g errgroup.Group
		g.SetLimit(workers)
		for i := range page {
			c := page[i]
			g.Go(func() error {
				atomic.AddInt64(&rep.Scanned, 1)
				switch decision, err := s.evaluateOne(ctx, c, now); {
				case err != nil:
					atomic.AddInt64(&rep.Failed, 1)
					log.Printf("[Streak] ⚠️ user %s skipped this tick: %v", c.UserID, err)
				case decision == StreakRemind:
					atomic.AddInt64(&rep.Reminded, 1)
				case decision == StreakReset:
					atomic.AddInt64(&rep.Reset, 1)
				}
				return nil
			})
		}
		// per-user failures are counted in rep, never returned
		g.Wait()

		cursor = page[len(page)-1].UserID
		if len(page) < batch {
			return rep, nil
		}
	}
}

func (s *StreakService) evaluateOne(ctx context.Context, c streakCandidate, now time.Time) (StreakDecision, error) {
	suppressed := false
	if needsSuppressionLookup(now, c.LastCheckInAt) {
		var err error
		if suppressed, err = s.Suppressor.IsSuppressed(ctx, c.UserID); err != nil {
			return StreakNone, err
		}
	}

	decision := EvaluateStreak(now, c.LastCheckInAt, suppressed)
	switch decision {
	case StreakRemind:
		if err := s.Notifier.Notify(ctx, c.UserID, models.NotificationKindStreakReminder, ReminderMessage); err != nil {
			logNotifyErr("Streak", c.UserID, err)
			return StreakNone, nil
		}
		if err := s.Suppressor.Suppress(ctx, c.UserID); err != nil {
			log.Printf("[Streak] ⚠️ reminder sent but suppression not set for %s: %v", c.UserID, err)
		}
	case StreakReset:
		if c.RecordID == nil || c.LastCheckInAt == nil {
			return StreakNone, nil
		}
		reset, err := s.resetStreak(ctx, *c.RecordID, *c.LastCheckInAt)
		if err != nil {
			return StreakNone, err
		}
		if !reset {
			return StreakNone, nil
		}
	}
	return decision, nil
}

// resetStreak clears the entries if the record still has the check-in the
// decision was made on. false means the user checked in meanwhile.
func (s *StreakService) resetStreak(ctx context.Context, recordID string, last time.Time) (bool, error) {
	reset := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.StreakRecord{}).
			Where("id = ? AND last_check_in_at = ?", recordID, last).
			Updates(map[string]interface{}{
				"last_check_in_at": nil,
				"entry_count":      0,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("streak_record_id = ?", recordID).Delete(&models.StreakEntry{}).Error; err != nil {
			return err
		}
		reset = true
		return nil
	})
	if err != nil {
		return false, &TransientStorageError{Op: "reset streak", Err: err}
	}
	return reset, nil
}
