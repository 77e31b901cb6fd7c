// workers/user_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"mealmood-community/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile is one user as returned by the profile service.
type RemoteProfile struct {
	ID                string    `json:"id"`
	ExternalID        string    `json:"external_id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	FirstName         *string   `json:"first_name,omitempty"`
	LastName          *string   `json:"last_name,omitempty"`
	ProfilePictureURL *string   `json:"profile_picture_url,omitempty"`
	AccountStatus     string    `json:"account_status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type profileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// ProfileSyncWorker mirrors profile-service users into the local users table.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	if endpointPath == "" {
		endpointPath = "/api/v1/public/profiles"
	}
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (profile-service → users)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	// Full backfill first, then incremental from the newest local row
	if _, err := w.SyncOnce(ctx, time.Time{}); err != nil {
		log.Printf("[SYNC] ⚠️ Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := w.SyncOnce(ctx, w.lastSyncTime()); err != nil {
				log.Printf("[SYNC] ❌ Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("[SYNC] ⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

// lastSyncTime is the newest UpdatedAt in the local mirror, soft-deleted rows included.
func (w *ProfileSyncWorker) lastSyncTime() time.Time {
	var u models.User
	err := w.db.Unscoped().Order("updated_at DESC").Limit(1).Find(&u).Error
	if err != nil || u.UpdatedAt.IsZero() {
		return time.Unix(0, 0)
	}
	return u.UpdatedAt
}

// SyncOnce pulls profile changes since the given time and upserts them.
// It returns how many users were written.
func (w *ProfileSyncWorker) SyncOnce(ctx context.Context, since time.Time) (int, error) {
	sinceStr := since.UTC().Format(time.RFC3339)

	base, err := url.Parse(w.baseURL)
	if err != nil {
		return 0, fmt.Errorf("invalid profile service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", sinceStr)
	endpointURL.RawQuery = q.Encode()
	finalURL := endpointURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request to %s: %w", finalURL, err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request to profile service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("profile service non-200 response: %d: %s", resp.StatusCode, string(body))
	}

	var response profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("failed to decode profile service response: %w", err)
	}
	if len(response.Users) == 0 {
		return 0, nil
	}

	var upserted, failed int
	for _, remote := range response.Users {
		local := toLocalUser(remote)
		if local.ID == "" {
			failed++
			continue
		}
		if err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_name", "email", "first_name", "last_name",
				"profile_picture_url", "created_at", "updated_at", "deleted_at",
			}),
		}).Create(&local).Error; err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert user %q (%s): %v", local.ID, local.UserName, err)
			continue
		}
		upserted++
	}

	log.Printf("[SYNC] ✅ Synced %d user(s) (%d upserted, %d errors) since %s",
		len(response.Users), upserted, failed, sinceStr)
	return upserted, nil
}

func toLocalUser(r RemoteProfile) models.User {
	id := r.ExternalID
	if id == "" {
		id = r.ID
	}
	u := models.User{
		ID:                id,
		UserName:          r.Username,
		Email:             r.Email,
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		ProfilePictureURL: r.ProfilePictureURL,
	}
	u.CreatedAt = r.CreatedAt
	u.UpdatedAt = r.UpdatedAt
	if r.AccountStatus == "deactivated" || r.AccountStatus == "deleted" {
		u.DeletedAt = gorm.DeletedAt{Time: r.UpdatedAt, Valid: true}
	}
	return u
}
