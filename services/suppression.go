package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReminderSuppressor rate-limits the streak reminder. It is a cache:
// losing an entry early only costs a duplicate reminder.
type ReminderSuppressor interface {
	Suppress(ctx context.Context, userID string) error
	IsSuppressed(ctx context.Context, userID string) (bool, error)
	Clear(ctx context.Context, userID string) error
}

const reminderKeyPrefix = "reminderNotification:"

func reminderKey(userID string) string { return reminderKeyPrefix + userID }

// RedisSuppressor stores one TTL key per user.
type RedisSuppressor struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewRedisSuppressor(rdb *redis.Client) *RedisSuppressor {
	return &RedisSuppressor{RDB: rdb, TTL: ReminderCooldown}
}

func (s *RedisSuppressor) Suppress(ctx context.Context, userID string) error {
	if err := s.RDB.Set(ctx, reminderKey(userID), userID, s.TTL).Err(); err != nil {
		return &TransientStorageError{Op: "suppress reminder", Err: err}
	}
	return nil
}

func (s *RedisSuppressor) IsSuppressed(ctx context.Context, userID string) (bool, error) {
	err := s.RDB.Get(ctx, reminderKey(userID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, &TransientStorageError{Op: "read reminder suppression", Err: err}
	}
	return true, nil
}

func (s *RedisSuppressor) Clear(ctx context.Context, userID string) error {
	if err := s.RDB.Del(ctx, reminderKey(userID)).Err(); err != nil {
		return &TransientStorageError{Op: "clear reminder suppression", Err: err}
	}
	return nil
}

// MemorySuppressor is the single-instance fallback when no Redis is configured.
type MemorySuppressor struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func NewMemorySuppressor(now func() time.Time) *MemorySuppressor {
	if now == nil {
		now = time.Now
	}
	return &MemorySuppressor{entries: make(map[string]time.Time), ttl: ReminderCooldown, now: now}
}

func (s *MemorySuppressor) Suppress(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[userID] = s.now().Add(s.ttl)
	return nil
}

func (s *MemorySuppressor) IsSuppressed(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[userID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.entries, userID)
		return false, nil
	}
	return true, nil
}

func (s *MemorySuppressor) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
