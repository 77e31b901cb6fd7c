package services

import "sync"

// NotificationHub wakes live streams when a user has new durable notifications.
// It carries no payload: streams re-read the notifications table from their cursor,
// so a dropped wake-up never loses a message.
type NotificationHub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewNotificationHub() *NotificationHub {
	return &NotificationHub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe returns a wake-up channel for userID and a func that releases it.
func (h *NotificationHub) Subscribe(userID string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan struct{}]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
		})
	}
}

// Wake signals every stream of userID. Never blocks.
func (h *NotificationHub) Wake(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- struct{}{}:
		default:
			// a wake-up is already pending
		}
	}
}

// Subscribers is the number of live streams for userID.
func (h *NotificationHub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}
