package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemorySuppressorExpires(t *testing.T) {
	ctx := context.Background()
	now := baseTime
	s := NewMemorySuppressor(func() time.Time { return now })

	if ok, _ := s.IsSuppressed(ctx, "u1"); ok {
		t.Fatal("suppressed before Suppress")
	}
	_ = s.Suppress(ctx, "u1")
	now = now.Add(ReminderCooldown - time.Second)
	if ok, _ := s.IsSuppressed(ctx, "u1"); !ok {
		t.Fatal("not suppressed inside the cooldown")
	}
	now = now.Add(time.Second)
	if ok, _ := s.IsSuppressed(ctx, "u1"); ok {
		t.Fatal("still suppressed after the cooldown")
	}

	_ = s.Suppress(ctx, "u1")
	_ = s.Clear(ctx, "u1")
	if ok, _ := s.IsSuppressed(ctx, "u1"); ok {
		t.Fatal("suppressed after Clear")
	}
}

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSuppressor(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newMiniRedis(t)
	s := NewRedisSuppressor(rdb)

	if err := s.Suppress(ctx, "u1"); err != nil {
		t.Fatalf("Suppress: %v", err)
	}
	if !mr.Exists("reminderNotification:u1") {
		t.Fatal("key reminderNotification:u1 not written")
	}
	if ttl := mr.TTL("reminderNotification:u1"); ttl != 7*24*time.Hour {
		t.Fatalf("ttl = %s, want 168h", ttl)
	}
	if ok, err := s.IsSuppressed(ctx, "u1"); err != nil || !ok {
		t.Fatalf("IsSuppressed = %v, %v", ok, err)
	}
	if ok, _ := s.IsSuppressed(ctx, "u2"); ok {
		t.Fatal("u2 suppressed without a key")
	}

	mr.FastForward(ReminderCooldown)
	if ok, _ := s.IsSuppressed(ctx, "u1"); ok {
		t.Fatal("still suppressed after TTL")
	}

	_ = s.Suppress(ctx, "u1")
	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if mr.Exists("reminderNotification:u1") {
		t.Fatal("key survived Clear")
	}
}

func TestRedisSuppressorTransientError(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	s := NewRedisSuppressor(rdb)
	mr.Close()

	_, err := s.IsSuppressed(context.Background(), "u1")
	if !errors.Is(err, ErrTransientStorage) {
		t.Fatalf("err = %v, want transient storage error", err)
	}
}
