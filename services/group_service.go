package services

import (
	"context"
	"errors"
	"strings"

	"mealmood-community/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupService struct {
	DB *gorm.DB
}

func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{DB: db}
}

type CreateGroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateGroup creates a group owned by ownerID, who becomes its first member.
func (s *GroupService) CreateGroup(ctx context.Context, ownerID string, in CreateGroupInput) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	if err := requireUser(ctx, s.DB, ownerID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	g := &models.Group{
		ID:          id,
		Name:        name,
		Slug:        slug.Make(name) + "-" + id[:8],
		Description: in.Description,
		OwnerID:     ownerID,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Create(g).Error; err != nil {
			return err
		}
		return tx.Create(&models.GroupMember{
			ID:      uuid.NewString(),
			GroupID: g.ID,
			UserID:  ownerID,
			IsOwner: true,
		}).Error
	})
	if err != nil {
		return nil, storageErr("create group", err, "group", "")
	}
	g.MemberCount = 1
	return g, nil
}

// ToggleMembership joins the group, or leaves it when already a member.
// The owner cannot leave their own group.
func (s *GroupService) ToggleMembership(ctx context.Context, groupID, userID string) (joined bool, err error) {
	if err := requireUser(ctx, s.DB, userID); err != nil {
		return false, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Group
		if err := tx.First(&g, "id = ?", groupID).Error; err != nil {
			return err
		}
		if g.OwnerID == userID {
			return &InvalidStateError{Reason: "the group owner cannot leave the group"}
		}

		res := tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			joined = false
			return nil
		}
		joined = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.GroupMember{
			ID:      uuid.NewString(),
			GroupID: groupID,
			UserID:  userID,
		}).Error
	})
	if err != nil {
		return false, storageErr("toggle group membership", err, "group", groupID)
	}
	return joined, nil
}

// membership returns (isMember, isOwner) for userID in groupID.
// A missing group is a NotFoundError.
func (s *GroupService) membership(ctx context.Context, groupID, userID string) (bool, bool, error) {
	var g models.Group
	if err := s.DB.WithContext(ctx).First(&g, "id = ?", groupID).Error; err != nil {
		return false, false, storageErr("load group", err, "group", groupID)
	}
	var m models.GroupMember
	err := s.DB.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, storageErr("load group member", err, "group", groupID)
	}
	return true, m.IsOwner || g.OwnerID == userID, nil
}

// RequireMember fails with ForbiddenError unless userID belongs to groupID.
func (s *GroupService) RequireMember(ctx context.Context, groupID, userID string) error {
	member, _, err := s.membership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return &ForbiddenError{Reason: "you are not part of this group"}
	}
	return nil
}

// RequireOwner fails with ForbiddenError unless userID owns groupID.
func (s *GroupService) RequireOwner(ctx context.Context, groupID, userID string) error {
	_, owner, err := s.membership(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !owner {
		return &ForbiddenError{Reason: "only the group owner can manage challenges"}
	}
	return nil
}
