package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mealmood-community/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()
	u := models.User{ID: id, UserName: "user-" + id, Email: id + "@example.com"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func seedGroup(t *testing.T, db *gorm.DB, ownerID string, memberIDs ...string) models.Group {
	t.Helper()
	g := models.Group{ID: uuid.NewString(), Name: "Group", Slug: "group-" + uuid.NewString()[:8], OwnerID: ownerID}
	if err := db.Omit("Members").Create(&g).Error; err != nil {
		t.Fatalf("seed group: %v", err)
	}
	members := append([]string{ownerID}, memberIDs...)
	for _, id := range members {
		m := models.GroupMember{ID: uuid.NewString(), GroupID: g.ID, UserID: id, IsOwner: id == ownerID}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed member %s: %v", id, err)
		}
	}
	return g
}

func seedChallenge(t *testing.T, db *gorm.DB, groupID string, start, end time.Time, status models.ChallengeStatus) models.Challenge {
	t.Helper()
	ch := models.Challenge{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Title:       "Veggie Week",
		Description: "Eat your greens",
		StartDate:   start.UTC(),
		EndDate:     end.UTC(),
		Status:      status,
	}
	if err := db.Omit("Participants").Create(&ch).Error; err != nil {
		t.Fatalf("seed challenge: %v", err)
	}
	return ch
}

func seedParticipant(t *testing.T, db *gorm.DB, challengeID, userID string) {
	t.Helper()
	p := models.ChallengeParticipant{ID: uuid.NewString(), ChallengeID: challengeID, UserID: userID, JoinedAt: baseTime}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed participant: %v", err)
	}
}

// seedEngagement creates one post by userID tagged to the challenge and the given reactions on it.
func seedEngagement(t *testing.T, db *gorm.DB, groupID, challengeID, userID string, likes, dislikes int) {
	t.Helper()
	cid := challengeID
	post := models.Post{ID: uuid.NewString(), UserID: userID, GroupID: groupID, ChallengeID: &cid, Title: "My plate"}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("seed post: %v", err)
	}
	add := func(kind models.ReactionKind, n int) {
		for i := 0; i < n; i++ {
			r := models.PostReaction{ID: uuid.NewString(), PostID: post.ID, UserID: uuid.NewString(), Kind: kind}
			if err := db.Create(&r).Error; err != nil {
				t.Fatalf("seed reaction: %v", err)
			}
		}
	}
	add(models.ReactionLike, likes)
	add(models.ReactionDislike, dislikes)
}

func challengeStatus(t *testing.T, db *gorm.DB, id string) models.ChallengeStatus {
	t.Helper()
	var ch models.Challenge
	if err := db.First(&ch, "id = ?", id).Error; err != nil {
		t.Fatalf("load challenge: %v", err)
	}
	return ch.Status
}

type sentNotification struct {
	UserID  string
	Kind    models.NotificationKind
	Message string
}

// recordingNotifier collects notifications; users in failFor get an error instead.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentNotification
	failFor map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, userID string, kind models.NotificationKind, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[userID] {
		return &NotificationDeliveryError{UserID: userID, Err: errors.New("channel down")}
	}
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Message: message})
	return nil
}

func (n *recordingNotifier) Sent() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.sent...)
}

func (n *recordingNotifier) countFor(userID string) int {
	c := 0
	for _, s := range n.Sent() {
		if s.UserID == userID {
			c++
		}
	}
	return c
}
