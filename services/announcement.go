package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"mealmood-community/models"

	"gorm.io/gorm"
)

// AnnouncementDispatcher delivers pending winner announcements from the outbox.
// Each winner row is marked once notified, so a retry only reaches the rest.
type AnnouncementDispatcher struct {
	DB       *gorm.DB
	Notifier Notifier
	now      func() time.Time

	mu sync.Mutex
}

func NewAnnouncementDispatcher(db *gorm.DB, notifier Notifier) *AnnouncementDispatcher {
	return &AnnouncementDispatcher{DB: db, Notifier: notifier, now: time.Now}
}

type DispatchReport struct {
	Announcements int
	Notified      int
	Failed        int
	Completed     int
}

// DispatchPending notifies every un-notified winner of every pending announcement.
// Calls are serialized; the scheduler and the retry worker share one dispatcher.
func (d *AnnouncementDispatcher) DispatchPending(ctx context.Context) (DispatchReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var rep DispatchReport
	var pending []models.ChallengeAnnouncement
	err := d.DB.WithContext(ctx).
		Where("status = ?", models.AnnouncementStatusPending).
		Preload("Winners", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at ASC").Order("id ASC").
		Find(&pending).Error
	if err != nil {
		return rep, &TransientStorageError{Op: "load pending announcements", Err: err}
	}
	rep.Announcements = len(pending)

	for i := range pending {
		notified, failed, done := d.dispatchOne(ctx, &pending[i])
		rep.Notified += notified
		rep.Failed += failed
		if done {
			rep.Completed++
		}
	}
	return rep, nil
}

func (d *AnnouncementDispatcher) dispatchOne(ctx context.Context, ann *models.ChallengeAnnouncement) (notified, failed int, done bool) {
	var errs []string
	for i := range ann.Winners {
		w := &ann.Winners[i]
		if w.NotifiedAt != nil {
			continue
		}
		if err := d.Notifier.Notify(ctx, w.UserID, models.NotificationKindChallengeWinner, ann.Message); err != nil {
			logNotifyErr("Announce", w.UserID, err)
			errs = append(errs, err.Error())
			failed++
			continue
		}
		at := d.now()
		if err := d.DB.WithContext(ctx).Model(&models.ChallengeWinner{}).
			Where("id = ? AND notified_at IS NULL", w.ID).
			Update("notified_at", at).Error; err != nil {
			// delivered but not recorded; the next attempt may repeat this one
			log.Printf("[Announce] ⚠️ could not mark winner %s notified: %v", w.ID, err)
			errs = append(errs, err.Error())
			failed++
			continue
		}
		w.NotifiedAt = &at
		notified++
	}

	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": strings.Join(errs, "; "),
	}
	if len(errs) == 0 {
		at := d.now()
		updates["status"] = models.AnnouncementStatusDispatched
		updates["dispatched_at"] = at
		done = true
	}
	if err := d.DB.WithContext(ctx).Model(&models.ChallengeAnnouncement{}).
		Where("id = ?", ann.ID).
		Updates(updates).Error; err != nil {
		log.Printf("[Announce] ⚠️ could not update announcement %s: %v", ann.ID, err)
		return notified, failed, false
	}
	if done {
		log.Printf("[Announce] 🏆 announcement for challenge %s dispatched", ann.ChallengeID)
	}
	return notified, failed, done
}

// ForChallenge returns the announcement written when the challenge closed.
func (d *AnnouncementDispatcher) ForChallenge(ctx context.Context, challengeID string) (*models.ChallengeAnnouncement, error) {
	var ann models.ChallengeAnnouncement
	err := d.DB.WithContext(ctx).
		Preload("Winners", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("challenge_id = ?", challengeID).
		First(&ann).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &NotFoundError{Resource: "announcement", ID: challengeID}
	}
	if err != nil {
		return nil, &TransientStorageError{Op: "load announcement", Err: err}
	}
	return &ann, nil
}
