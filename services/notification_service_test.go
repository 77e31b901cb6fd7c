package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mealmood-community/models"
)

func TestNotificationHubWakesSubscribers(t *testing.T) {
	hub := NewNotificationHub()
	wake, release := hub.Subscribe("u1")
	other, releaseOther := hub.Subscribe("u2")
	defer releaseOther()

	hub.Wake("u1")
	hub.Wake("u1") // coalesced, must not block

	select {
	case <-wake:
	case <-time.After(time.Second):
		t.Fatal("no wake-up for u1")
	}
	select {
	case <-other:
		t.Fatal("u2 woken by u1's notification")
	default:
	}

	if hub.Subscribers("u1") != 1 {
		t.Fatalf("subscribers = %d", hub.Subscribers("u1"))
	}
	release()
	release()
	if hub.Subscribers("u1") != 0 {
		t.Fatalf("subscribers after release = %d", hub.Subscribers("u1"))
	}
}

func TestNotifyPersistsInCallOrder(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	hub := NewNotificationHub()
	svc := NewNotificationService(db, hub)
	wake, release := hub.Subscribe("u1")
	defer release()

	messages := []string{"first", "second", "third"}
	for _, m := range messages {
		if err := svc.Notify(ctx, "u1", "", m); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	select {
	case <-wake:
	default:
		t.Fatal("subscriber not woken")
	}

	after, err := svc.After(ctx, "u1", "", 10)
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	if len(after) != 3 {
		t.Fatalf("after = %d rows", len(after))
	}
	for i, n := range after {
		if n.Message != messages[i] || n.Kind != models.NotificationKindGeneral {
			t.Errorf("row %d = %+v", i, n)
		}
	}

	rest, _ := svc.After(ctx, "u1", after[0].ID, 10)
	if len(rest) != 2 || rest[0].Message != "second" {
		t.Errorf("after cursor = %+v", rest)
	}

	latest, _ := svc.LatestID(ctx, "u1")
	if latest != after[2].ID {
		t.Errorf("latest = %s, want %s", latest, after[2].ID)
	}

	list, p, err := svc.List(ctx, "u1", 1, 2)
	if err != nil || p.Total != 3 || len(list) != 2 || list[0].Message != "third" {
		t.Fatalf("list = %+v, %+v, %v", list, p, err)
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	_ = svc.Notify(ctx, "u1", models.NotificationKindChallengeWinner, "you won")
	items, _ := svc.After(ctx, "u1", "", 1)

	if _, err := svc.MarkRead(ctx, "u2", items[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user's notification: err = %v, want not found", err)
	}
	n, err := svc.MarkRead(ctx, "u1", items[0].ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !n.IsRead || n.ReadAt == nil {
		t.Errorf("notification = %+v", n)
	}
}
