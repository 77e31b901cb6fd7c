package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"mealmood-community/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notifier pushes a message to a user: durable row first, then a live wake-up.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind models.NotificationKind, message string) error
}

type NotificationService struct {
	DB  *gorm.DB
	Hub *NotificationHub
	now func() time.Time
}

func NewNotificationService(db *gorm.DB, hub *NotificationHub) *NotificationService {
	if hub == nil {
		hub = NewNotificationHub()
	}
	return &NotificationService{DB: db, Hub: hub, now: time.Now}
}

// Notify records the notification and wakes the user's live streams.
// Per-user order follows call order because IDs are UUIDv7.
func (s *NotificationService) Notify(ctx context.Context, userID string, kind models.NotificationKind, message string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return &NotificationDeliveryError{UserID: userID, Err: err}
	}
	if kind == "" {
		kind = models.NotificationKindGeneral
	}
	n := models.Notification{
		ID:        id.String(),
		UserID:    userID,
		Kind:      kind,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
		return &NotificationDeliveryError{UserID: userID, Err: err}
	}
	s.Hub.Wake(userID)
	return nil
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, page, size int) ([]models.Notification, Page, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, Page{}, storageErr("count notifications", err, "notification", "")
	}
	p := Paginate(int(total), page, size)

	var items []models.Notification
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Offset(p.Offset).Limit(p.PageSize).
		Find(&items).Error; err != nil {
		return nil, Page{}, storageErr("list notifications", err, "notification", "")
	}
	return items, p, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	now := s.now()
	res := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if res.Error != nil {
		return nil, storageErr("mark notification read", res.Error, "notification", id)
	}
	if res.RowsAffected == 0 {
		return nil, &NotFoundError{Resource: "notification", ID: id}
	}

	var n models.Notification
	if err := s.DB.WithContext(ctx).First(&n, "id = ?", id).Error; err != nil {
		return nil, storageErr("load notification", err, "notification", id)
	}
	return &n, nil
}

// After returns notifications newer than cursor (exclusive), oldest first.
func (s *NotificationService) After(ctx context.Context, userID, cursor string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	if cursor != "" {
		q = q.Where("id > ?", cursor)
	}
	var items []models.Notification
	if err := q.Order("id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, storageErr("read notifications", err, "notification", "")
	}
	return items, nil
}

// LatestID is the newest notification ID for the user, or "" when none.
func (s *NotificationService) LatestID(ctx context.Context, userID string) (string, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Order("id DESC").Limit(1).
		Pluck("id", &ids).Error; err != nil {
		return "", storageErr("latest notification", err, "notification", "")
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// logNotifyErr is the one place scheduler paths report delivery failures.
func logNotifyErr(tag, userID string, err error) {
	log.Printf("[%s] ⚠️ %v", tag, fmt.Errorf("notification to %s not delivered: %w", userID, err))
}
