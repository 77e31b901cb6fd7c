package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

const sseKeepAlive = 15 * time.Second

// StreamNotificationsSSE streams the authenticated user's notifications as server-sent events.
// Resumes after Last-Event-ID (or ?after=) when given, otherwise only new notifications are sent.
func (s *NotificationService) StreamNotificationsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	cursor := c.Get("Last-Event-ID")
	if cursor == "" {
		cursor = c.Query("after")
	}
	if cursor == "" {
		latest, err := s.LatestID(context.Background(), userID)
		if err != nil {
			log.Printf("SSE init error for user %s: %v", userID, err)
		}
		cursor = latest
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	wake, release := s.Hub.Subscribe(userID)
	done := c.Context().Done()

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer release()

		ticker := time.NewTicker(sseKeepAlive)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		// Catch up on anything written between the cursor and subscribing
		var err error
		if cursor, err = s.writeNotificationsAfter(w, userID, cursor); err != nil {
			return
		}

		for {
			select {
			case <-wake:
				if cursor, err = s.writeNotificationsAfter(w, userID, cursor); err != nil {
					return
				}
			case <-ticker.C:
				// Poll as a safety net and keep proxies from closing the connection
				if cursor, err = s.writeNotificationsAfter(w, userID, cursor); err != nil {
					return
				}
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})

	return nil
}

// writeNotificationsAfter sends every notification after cursor and returns the new cursor.
// A write error means the client went away.
func (s *NotificationService) writeNotificationsAfter(w *bufio.Writer, userID, cursor string) (string, error) {
	items, err := s.After(context.Background(), userID, cursor, 100)
	if err != nil {
		log.Printf("SSE query error for user %s: %v", userID, err)
		return cursor, nil
	}
	if len(items) == 0 {
		return cursor, nil
	}

	for _, n := range items {
		payload, _ := json.Marshal(n)
		fmt.Fprintf(w, "id: %s\nevent: receive_notification\ndata: %s\n\n", n.ID, payload)
		cursor = n.ID
	}
	if err := w.Flush(); err != nil {
		return cursor, err
	}
	return cursor, nil
}
