package services

import (
	"context"
	"errors"
	"strings"

	"mealmood-community/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostService struct {
	DB     *gorm.DB
	Groups *GroupService
	Images ImageStore
}

func NewPostService(db *gorm.DB, groups *GroupService, images ImageStore) *PostService {
	return &PostService{DB: db, Groups: groups, Images: images}
}

type PostInput struct {
	Title       string
	Description string
	ChallengeID string
}

// ReactionResult is the post's state after a like/dislike toggle.
type ReactionResult struct {
	PostID        string               `json:"post_id"`
	Reaction      *models.ReactionKind `json:"reaction"`
	LikesCount    int64                `json:"likes_count"`
	DislikesCount int64                `json:"dislikes_count"`
}

// CreatePost adds a post to a group feed, optionally tagged to one of its challenges.
func (s *PostService) CreatePost(ctx context.Context, userID, groupID string, in PostInput, img *ImageUpload) (*models.Post, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "is required"}
	}
	if err := s.Groups.RequireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}

	post := &models.Post{
		ID:          uuid.NewString(),
		UserID:      userID,
		GroupID:     groupID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
	}
	if in.ChallengeID != "" {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&models.Challenge{}).
			Where("id = ? AND group_id = ?", in.ChallengeID, groupID).
			Count(&n).Error; err != nil {
			return nil, storageErr("check challenge", err, "challenge", in.ChallengeID)
		}
		if n == 0 {
			return nil, &NotFoundError{Resource: "challenge", ID: in.ChallengeID}
		}
		cid := in.ChallengeID
		post.ChallengeID = &cid
	}

	url, err := uploadImage(ctx, s.Images, img, "posts", post.ID)
	if err != nil {
		return nil, err
	}
	post.ImageURL = url

	if err := s.DB.WithContext(ctx).Create(post).Error; err != nil {
		deleteImages(ctx, s.Images, url)
		return nil, storageErr("create post", err, "post", "")
	}
	return post, nil
}

// ToggleReaction applies a like or dislike. The same reaction twice removes it;
// the opposite one replaces it.
func (s *PostService) ToggleReaction(ctx context.Context, userID, postID string, kind models.ReactionKind) (*ReactionResult, error) {
	if kind != models.ReactionLike && kind != models.ReactionDislike {
		return nil, &ValidationError{Field: "reaction", Reason: "must be like or dislike"}
	}
	var post models.Post
	if err := s.DB.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return nil, storageErr("load post", err, "post", postID)
	}
	if err := s.Groups.RequireMember(ctx, post.GroupID, userID); err != nil {
		return nil, err
	}

	result := &ReactionResult{PostID: post.ID}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Removing the same kind is the toggle-off; done as one conditional delete.
		res := tx.Where("post_id = ? AND user_id = ? AND kind = ?", post.ID, userID, kind).Delete(&models.PostReaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		k := kind
		result.Reaction = &k
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind"}),
		}).Create(&models.PostReaction{
			ID:     uuid.NewString(),
			PostID: post.ID,
			UserID: userID,
			Kind:   kind,
		}).Error
	})
	if err != nil {
		return nil, storageErr("toggle reaction", err, "post", postID)
	}

	if result.LikesCount, result.DislikesCount, err = s.reactionCounts(ctx, post.ID); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostService) reactionCounts(ctx context.Context, postID string) (likes, dislikes int64, err error) {
	type row struct {
		Kind  models.ReactionKind
		Total int64
	}
	var rows []row
	if err := s.DB.WithContext(ctx).Model(&models.PostReaction{}).
		Select("kind, COUNT(*) AS total").
		Where("post_id = ?", postID).
		Group("kind").
		Scan(&rows).Error; err != nil {
		return 0, 0, storageErr("count reactions", err, "post", postID)
	}
	for _, r := range rows {
		switch r.Kind {
		case models.ReactionLike:
			likes = r.Total
		case models.ReactionDislike:
			dislikes = r.Total
		}
	}
	return likes, dislikes, nil
}

// DeletePost removes a post and its reactions. Allowed for the author and the group owner.
func (s *PostService) DeletePost(ctx context.Context, userID, postID string) error {
	var post models.Post
	if err := s.DB.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return storageErr("load post", err, "post", postID)
	}
	if post.UserID != userID {
		if err := s.Groups.RequireOwner(ctx, post.GroupID, userID); err != nil {
			if errors.Is(err, ErrForbidden) {
				return &ForbiddenError{Reason: "only the author or the group owner can delete this post"}
			}
			return err
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostReaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, "id = ?", post.ID).Error
	})
	if err != nil {
		return storageErr("delete post", err, "post", postID)
	}
	deleteImages(ctx, s.Images, post.ImageURL)
	return nil
}
