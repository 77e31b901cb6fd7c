package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mealmood-community/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type streakFixture struct {
	db         *gorm.DB
	svc        *StreakService
	notifier   *recordingNotifier
	suppressor *MemorySuppressor
	clock      time.Time
	goal       models.MoodGoal
}

func newStreakFixture(t *testing.T, users ...string) *streakFixture {
	t.Helper()
	f := &streakFixture{db: newTestDB(t), notifier: &recordingNotifier{}, clock: baseTime}
	for _, u := range users {
		seedUser(t, f.db, u)
	}
	f.suppressor = NewMemorySuppressor(func() time.Time { return f.clock })
	f.svc = NewStreakService(f.db, f.suppressor, f.notifier)
	f.svc.BatchSize = 2
	f.svc.Workers = 3

	f.goal = models.MoodGoal{ID: uuid.NewString(), Name: "Boost Energy", Description: "Light meals"}
	if err := f.db.Create(&f.goal).Error; err != nil {
		t.Fatalf("seed goal: %v", err)
	}
	return f
}

func (f *streakFixture) entries(t *testing.T, userID string) int {
	t.Helper()
	e, err := f.svc.Entries(context.Background(), userID)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	return len(e)
}

func TestSubmitMoodCheckInIdempotentWithinDay(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t, "u1")

	first, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if !first.Accepted || !first.Appended || first.StreakCount != 1 {
		t.Fatalf("first = %+v", first)
	}

	second, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if !second.Accepted || second.Appended || second.StreakCount != 1 {
		t.Fatalf("second = %+v", second)
	}
	if n := f.entries(t, "u1"); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}

	third, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime.Add(25*time.Hour))
	if err != nil {
		t.Fatalf("third: %v", err)
	}
	if !third.Appended || third.StreakCount != 2 {
		t.Fatalf("third = %+v", third)
	}
	if n, _ := f.svc.GetStreakCount(ctx, "u1"); n != 2 {
		t.Fatalf("streak count = %d, want 2", n)
	}

	var u models.User
	f.db.First(&u, "id = ?", "u1")
	if u.MoodGoalID == nil || *u.MoodGoalID != f.goal.ID {
		t.Errorf("user mood goal = %v", u.MoodGoalID)
	}
}

func TestSubmitMoodCheckInClearsSuppression(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t, "u1")
	_ = f.suppressor.Suppress(ctx, "u1")

	if _, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ok, _ := f.suppressor.IsSuppressed(ctx, "u1"); ok {
		t.Fatal("suppression survived a new check-in")
	}
}

func TestSubmitMoodCheckInErrors(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t, "u1")

	if _, err := f.svc.SubmitMoodCheckIn(ctx, "u1", "nope", baseTime); !errors.Is(err, ErrInvalidState) {
		t.Errorf("bad goal: err = %v, want invalid state", err)
	}
	if _, err := f.svc.SubmitMoodCheckIn(ctx, "ghost", f.goal.ID, baseTime); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: err = %v, want not found", err)
	}
}

func TestEvaluateStreaksRemindsOnceInGraceWindow(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t, "u1")
	if _, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime.Add(-25*time.Hour)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rep, err := f.svc.EvaluateStreaks(ctx, baseTime)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rep.Reminded != 1 {
		t.Fatalf("report = %+v, want one reminder", rep)
	}
	sent := f.notifier.Sent()
	if sent[0].Message != ReminderMessage || sent[0].Kind != models.NotificationKindStreakReminder {
		t.Errorf("sent = %+v", sent[0])
	}

	f.clock = baseTime.Add(time.Minute)
	rep, _ = f.svc.EvaluateStreaks(ctx, f.clock)
	if rep.Reminded != 0 || f.notifier.countFor("u1") != 1 {
		t.Fatalf("second pass reminded again: %+v", rep)
	}
}

func TestEvaluateStreaksResetsIgnoringSuppression(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t, "u1")
	if _, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime.Add(-31*time.Hour)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_ = f.suppressor.Suppress(ctx, "u1")

	rep, err := f.svc.EvaluateStreaks(ctx, baseTime)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rep.Reset != 1 {
		t.Fatalf("report = %+v, want one reset", rep)
	}
	if n := f.entries(t, "u1"); n != 0 {
		t.Fatalf("entries after reset = %d", n)
	}
	if n, _ := f.svc.GetStreakCount(ctx, "u1"); n != 0 {
		t.Fatalf("streak count after reset = %d", n)
	}

	// Lifetime count survives, so the global ranking still credits the check-in
	board, err := f.svc.GetGlobalMoodRanking(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if board.Entries[0].MoodCount != 1 {
		t.Errorf("lifetime count = %d, want 1", board.Entries[0].MoodCount)
	}

	// A fresh check-in after the reset starts a new streak of one
	res, err := f.svc.SubmitMoodCheckIn(ctx, "u1", f.goal.ID, baseTime.Add(time.Hour))
	if err != nil || !res.Appended || res.StreakCount != 1 {
		t.Fatalf("after reset = %+v, %v", res, err)
	}
}

func TestEvaluateStreaksSkipsFreshAndRemindsNew(t *testing.T) {
	ctx := context.Background()
	var users []string
	for i := 0; i < 5; i++ {
		users = append(users, fmt.Sprintf("u%d", i))
	}
	f := newStreakFixture(t, users...)
	// u0, u1 checked in recently; u2..u4 never did
	for _, u := range users[:2] {
		if _, err := f.svc.SubmitMoodCheckIn(ctx, u, f.goal.ID, baseTime.Add(-2*time.Hour)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	rep, err := f.svc.EvaluateStreaks(ctx, baseTime)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rep.Scanned != 3 || rep.Reminded != 3 || rep.Failed != 0 {
		t.Fatalf("report = %+v, want 3 scanned and reminded", rep)
	}
	for _, u := range users[:2] {
		if f.notifier.countFor(u) != 0 {
			t.Errorf("%s reminded despite a fresh check-in", u)
		}
	}
}

func TestEvaluateStreaksContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	f := newStreakFixture(t, "a", "b", "c")
	f.notifier.failFor = map[string]bool{"b": true}

	rep, err := f.svc.EvaluateStreaks(ctx, baseTime)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if rep.Reminded != 2 {
		t.Fatalf("report = %+v, want 2 reminders", rep)
	}
	if ok, _ := f.suppressor.IsSuppressed(ctx, "b"); ok {
		t.Error("suppression set although the reminder was not delivered")
	}
}

func TestSeedMoodGoalsOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewStreakService(db, NewMemorySuppressor(nil), &recordingNotifier{})

	if err := svc.SeedMoodGoals(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.SeedMoodGoals(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	goals, err := svc.ListMoodGoals(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(goals) != len(models.DefaultMoodGoals) {
		t.Fatalf("goals = %d, want %d", len(goals), len(models.DefaultMoodGoals))
	}
	if goals[0].Emoji != models.DefaultMoodEmoji {
		t.Errorf("emoji = %q", goals[0].Emoji)
	}
}
