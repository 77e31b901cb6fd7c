// services/users.go
package services

import (
	"context"
	"strings"

	"mealmood-community/models"

	"gorm.io/gorm"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// Get loads a mirrored user or returns NotFoundError.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return nil, storageErr("load user", err, "user", userID)
	}
	return &u, nil
}

// Search matches username or name, case-insensitive, within the local mirror.
func (s *UserService) Search(ctx context.Context, query string, limit int) ([]models.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	q := s.DB.WithContext(ctx).Model(&models.User{}).Limit(limit).Order("user_name ASC")
	if query = strings.TrimSpace(query); query != "" {
		term := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(user_name) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", term, term, term)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, storageErr("search users", err, "user", "")
	}
	return users, nil
}

func requireUser(ctx context.Context, db *gorm.DB, userID string) error {
	var n int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return storageErr("check user", err, "user", userID)
	}
	if n == 0 {
		return &NotFoundError{Resource: "user", ID: userID}
	}
	return nil
}
