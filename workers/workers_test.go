package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"mealmood-community/models"
	"mealmood-community/services"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestProfileSyncUpsertsAndSoftDeletes(t *testing.T) {
	db := newTestDB(t)
	updated := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := "Grace"

	var gotToken, gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Service-Token")
		gotSince = r.URL.Query().Get("since")
		if r.URL.Path != "/api/v1/public/profiles" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(profileChangesResponse{Users: []RemoteProfile{
			{ID: "p1", ExternalID: "u1", Username: "grace", FirstName: &first, UpdatedAt: updated, CreatedAt: updated},
			{ID: "u2", Username: "gone", AccountStatus: "deleted", UpdatedAt: updated, CreatedAt: updated},
			{Username: "no-id"},
		}})
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(db, srv.URL, "", "svc-token")
	since := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	n, err := w.SyncOnce(context.Background(), since)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n != 2 {
		t.Errorf("upserted = %d, want 2", n)
	}
	if gotToken != "svc-token" || gotSince != "2025-02-01T00:00:00Z" {
		t.Errorf("token = %q since = %q", gotToken, gotSince)
	}

	var u models.User
	if err := db.First(&u, "id = ?", "u1").Error; err != nil {
		t.Fatalf("u1 not mirrored: %v", err)
	}
	if u.UserName != "grace" || u.DisplayName() != "Grace" {
		t.Errorf("u1 = %+v", u)
	}
	if err := db.First(&models.User{}, "id = ?", "u2").Error; err == nil {
		t.Error("deleted profile is visible")
	}
	var gone models.User
	if err := db.Unscoped().First(&gone, "id = ?", "u2").Error; err != nil || !gone.DeletedAt.Valid {
		t.Errorf("u2 = %+v, %v", gone, err)
	}

	// Replaying the same batch updates in place
	if _, err := w.SyncOnce(context.Background(), w.lastSyncTime()); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	var count int64
	db.Unscoped().Model(&models.User{}).Count(&count)
	if count != 2 {
		t.Errorf("users = %d", count)
	}
}

func TestProfileSyncNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	w := NewProfileSyncWorker(newTestDB(t), srv.URL, "/profiles", "bad")
	if _, err := w.SyncOnce(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected an error for a 401 response")
	}
}

type countingDispatcher struct{ calls atomic.Int32 }

func (d *countingDispatcher) DispatchPending(context.Context) (services.DispatchReport, error) {
	d.calls.Add(1)
	return services.DispatchReport{}, nil
}

func TestPollAnnouncementsStopsOnCancel(t *testing.T) {
	d := &countingDispatcher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		PollAnnouncements(ctx, d, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for d.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("dispatcher was not polled")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
