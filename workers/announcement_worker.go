// workers/announcement_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"mealmood-community/services"
)

// Dispatcher is satisfied by services.AnnouncementDispatcher.
type Dispatcher interface {
	DispatchPending(ctx context.Context) (services.DispatchReport, error)
}

// PollAnnouncements retries pending winner announcements until ctx is done.
func PollAnnouncements(ctx context.Context, d Dispatcher, pollInterval time.Duration) {
	log.Printf("[Announce] 🔁 Retrying pending announcements every %s", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[Announce] ⏹️ Announcement retry stopped.")
			return
		case <-ticker.C:
			rep, err := d.DispatchPending(ctx)
			if err != nil {
				log.Printf("[Announce] ❌ Retry pass failed: %v", err)
				continue
			}
			if rep.Notified > 0 || rep.Failed > 0 {
				log.Printf("[Announce] 📣 %d notified, %d failed, %d announcement(s) completed",
					rep.Notified, rep.Failed, rep.Completed)
			}
		}
	}
}
