package services

import (
	"context"
	"strings"
	"time"

	"mealmood-community/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChallengeService struct {
	DB     *gorm.DB
	Groups *GroupService
	Images ImageStore
}

func NewChallengeService(db *gorm.DB, groups *GroupService, images ImageStore) *ChallengeService {
	return &ChallengeService{DB: db, Groups: groups, Images: images}
}

type ChallengeInput struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// ChallengeUpdate holds the fields an owner may change; nil means unchanged.
type ChallengeUpdate struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

type ToggleResult struct {
	Action      string `json:"action"`
	ChallengeID string `json:"challenge_id"`
}

type LeaderboardEntry struct {
	RankedUser
	UserName    string  `json:"user_name"`
	DisplayName string  `json:"display_name"`
	Picture     *string `json:"profile_picture_url,omitempty"`
}

type Leaderboard struct {
	Page
	Entries []LeaderboardEntry `json:"entries"`
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return &ValidationError{Field: "start_date/end_date", Reason: "both dates are required"}
	}
	if start.After(end) {
		return &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	return nil
}

// CreateChallenge adds an upcoming challenge to a group. Owner only.
func (s *ChallengeService) CreateChallenge(ctx context.Context, ownerID, groupID string, in ChallengeInput, img *ImageUpload) (*models.Challenge, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "is required"}
	}
	if err := validateWindow(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	if err := s.Groups.RequireOwner(ctx, groupID, ownerID); err != nil {
		return nil, err
	}

	ch := &models.Challenge{
		ID:          uuid.NewString(),
		GroupID:     groupID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		Status:      models.ChallengeStatusUpcoming,
	}
	url, err := uploadImage(ctx, s.Images, img, "challenges", ch.ID)
	if err != nil {
		return nil, err
	}
	ch.ImageURL = url

	if err := s.DB.WithContext(ctx).Omit("Participants").Create(ch).Error; err != nil {
		deleteImages(ctx, s.Images, url)
		return nil, storageErr("create challenge", err, "challenge", "")
	}
	return ch, nil
}

// UpdateChallenge edits a challenge. Moving the start into the future on a
// challenge that has not closed puts it back to upcoming.
func (s *ChallengeService) UpdateChallenge(ctx context.Context, ownerID, groupID, challengeID string, in ChallengeUpdate, img *ImageUpload, now time.Time) (*models.Challenge, error) {
	if err := s.Groups.RequireOwner(ctx, groupID, ownerID); err != nil {
		return nil, err
	}
	ch, err := s.load(ctx, s.DB, groupID, challengeID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		updates["title"] = t
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}

	start, end := ch.StartDate, ch.EndDate
	if in.StartDate != nil {
		start = in.StartDate.UTC()
	}
	if in.EndDate != nil {
		end = in.EndDate.UTC()
	}
	if in.StartDate != nil || in.EndDate != nil {
		if ch.Status == models.ChallengeStatusClose {
			return nil, &InvalidStateError{Reason: "a closed challenge cannot be rescheduled"}
		}
		if err := validateWindow(start, end); err != nil {
			return nil, err
		}
		updates["start_date"] = start
		updates["end_date"] = end
	}

	prevStatus := ch.Status
	if in.StartDate != nil && start.After(now) && ch.Status != models.ChallengeStatusClose {
		updates["status"] = models.ChallengeStatusUpcoming
	}

	oldImage := ch.ImageURL
	newImage, err := uploadImage(ctx, s.Images, img, "challenges", ch.ID+"-"+uuid.NewString()[:8])
	if err != nil {
		return nil, err
	}
	if newImage != "" {
		updates["image_url"] = newImage
	}

	if len(updates) > 0 {
		// The status guard keeps an edit from racing the lifecycle pass.
		res := s.DB.WithContext(ctx).Model(&models.Challenge{}).
			Where("id = ? AND status = ?", ch.ID, prevStatus).
			Updates(updates)
		if res.Error != nil {
			deleteImages(ctx, s.Images, newImage)
			return nil, storageErr("update challenge", res.Error, "challenge", ch.ID)
		}
		if res.RowsAffected == 0 {
			deleteImages(ctx, s.Images, newImage)
			return nil, &InvalidStateError{Reason: "challenge changed state during the update, try again"}
		}
	}
	if newImage != "" {
		deleteImages(ctx, s.Images, oldImage)
	}
	return s.load(ctx, s.DB, groupID, challengeID)
}

// DeleteChallenge removes a challenge with its participants, tagged posts,
// their reactions and any announcement rows. Owner only.
func (s *ChallengeService) DeleteChallenge(ctx context.Context, ownerID, groupID, challengeID string) error {
	if err := s.Groups.RequireOwner(ctx, groupID, ownerID); err != nil {
		return err
	}

	var images []string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := s.load(ctx, tx, groupID, challengeID)
		if err != nil {
			return err
		}
		images = append(images, ch.ImageURL)

		var posts []models.Post
		if err := tx.Where("challenge_id = ?", ch.ID).Find(&posts).Error; err != nil {
			return err
		}
		postIDs := make([]string, 0, len(posts))
		for _, p := range posts {
			postIDs = append(postIDs, p.ID)
			images = append(images, p.ImageURL)
		}
		if len(postIDs) > 0 {
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.PostReaction{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("challenge_id = ?", ch.ID).Delete(&models.ChallengeWinner{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", ch.ID).Delete(&models.ChallengeAnnouncement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", ch.ID).Delete(&models.ChallengeParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Challenge{}, "id = ?", ch.ID).Error
	})
	if err != nil {
		return storageErr("delete challenge", err, "challenge", challengeID)
	}
	deleteImages(ctx, s.Images, images...)
	return nil
}

func (s *ChallengeService) load(ctx context.Context, db *gorm.DB, groupID, challengeID string) (*models.Challenge, error) {
	var ch models.Challenge
	q := db.WithContext(ctx).Where("id = ?", challengeID)
	if groupID != "" {
		q = q.Where("group_id = ?", groupID)
	}
	if err := q.First(&ch).Error; err != nil {
		return nil, storageErr("load challenge", err, "challenge", challengeID)
	}
	return &ch, nil
}

// Get returns a challenge by ID.
func (s *ChallengeService) Get(ctx context.Context, challengeID string) (*models.Challenge, error) {
	return s.load(ctx, s.DB, "", challengeID)
}

// JoinOrLeaveChallenge toggles userID in the participant set.
// Both directions are only allowed while the challenge is open.
func (s *ChallengeService) JoinOrLeaveChallenge(ctx context.Context, userID, challengeID string, now time.Time) (*ToggleResult, error) {
	ch, err := s.load(ctx, s.DB, "", challengeID)
	if err != nil {
		return nil, err
	}
	if err := s.Groups.RequireMember(ctx, ch.GroupID, userID); err != nil {
		return nil, err
	}

	result := &ToggleResult{ChallengeID: ch.ID}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Challenge
		if err := tx.Select("id", "status").First(&current, "id = ?", ch.ID).Error; err != nil {
			return err
		}
		if current.Status != models.ChallengeStatusOpen {
			return &NotOpenError{ChallengeID: ch.ID, Status: current.Status}
		}

		res := tx.Where("challenge_id = ? AND user_id = ?", ch.ID, userID).Delete(&models.ChallengeParticipant{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			result.Action = ActionLeft
			return nil
		}
		result.Action = ActionJoined
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ChallengeParticipant{
			ID:          uuid.NewString(),
			ChallengeID: ch.ID,
			UserID:      userID,
			JoinedAt:    now,
		}).Error
	})
	if err != nil {
		return nil, storageErr("toggle challenge participant", err, "challenge", challengeID)
	}
	return result, nil
}

// IsParticipant reports whether userID has joined challengeID.
func (s *ChallengeService) IsParticipant(ctx context.Context, challengeID, userID string) (bool, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ? AND user_id = ?", challengeID, userID).
		Count(&n).Error
	if err != nil {
		return false, storageErr("check participant", err, "challenge", challengeID)
	}
	return n > 0, nil
}

func (s *ChallengeService) requireParticipant(ctx context.Context, challengeID, userID string) error {
	ok, err := s.IsParticipant(ctx, challengeID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return &ForbiddenError{Reason: "user is not part of this challenge"}
	}
	return nil
}

// ListGroupChallenges returns the group's challenges with member counts and the caller's join flag.
func (s *ChallengeService) ListGroupChallenges(ctx context.Context, userID, groupID string, status models.ChallengeStatus) ([]models.Challenge, error) {
	if err := s.Groups.RequireMember(ctx, groupID, userID); err != nil {
		return nil, err
	}
	q := s.DB.WithContext(ctx).Where("group_id = ?", groupID)
	if status != "" {
		if !status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: "must be upcoming, open or close"}
		}
		q = q.Where("status = ?", status)
	}
	var list []models.Challenge
	if err := q.Order("start_date DESC").Order("id ASC").Find(&list).Error; err != nil {
		return nil, storageErr("list challenges", err, "challenge", "")
	}
	if err := s.decorate(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

// ListJoined pages through the group challenges userID has joined.
func (s *ChallengeService) ListJoined(ctx context.Context, userID, groupID string, page, size int) ([]models.Challenge, Page, error) {
	if err := s.Groups.RequireMember(ctx, groupID, userID); err != nil {
		return nil, Page{}, err
	}
	base := func() *gorm.DB {
		return s.DB.WithContext(ctx).Model(&models.Challenge{}).
			Joins("JOIN challenge_participants ON challenge_participants.challenge_id = challenges.id").
			Where("challenges.group_id = ? AND challenge_participants.user_id = ?", groupID, userID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, Page{}, storageErr("count joined challenges", err, "challenge", "")
	}
	p := Paginate(int(total), page, size)

	var list []models.Challenge
	if err := base().Select("challenges.*").
		Order("challenges.start_date DESC").Order("challenges.id ASC").
		Offset(p.Offset).Limit(p.PageSize).
		Find(&list).Error; err != nil {
		return nil, Page{}, storageErr("list joined challenges", err, "challenge", "")
	}
	if err := s.decorate(ctx, userID, list); err != nil {
		return nil, Page{}, err
	}
	return list, p, nil
}

func (s *ChallengeService) decorate(ctx context.Context, userID string, list []models.Challenge) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	for i, ch := range list {
		ids[i] = ch.ID
	}

	type countRow struct {
		ChallengeID string
		Total       int64
	}
	var counts []countRow
	if err := s.DB.WithContext(ctx).Model(&models.ChallengeParticipant{}).
		Select("challenge_id, COUNT(*) AS total").
		Where("challenge_id IN ?", ids).
		Group("challenge_id").
		Scan(&counts).Error; err != nil {
		return storageErr("count participants", err, "challenge", "")
	}
	byID := make(map[string]int64, len(counts))
	for _, c := range counts {
		byID[c.ChallengeID] = c.Total
	}

	var joined []string
	if err := s.DB.WithContext(ctx).Model(&models.ChallengeParticipant{}).
		Where("challenge_id IN ? AND user_id = ?", ids, userID).
		Pluck("challenge_id", &joined).Error; err != nil {
		return storageErr("load joined flags", err, "challenge", "")
	}
	isJoined := make(map[string]bool, len(joined))
	for _, id := range joined {
		isJoined[id] = true
	}

	for i := range list {
		list[i].MemberCount = byID[list[i].ID]
		list[i].IsJoined = isJoined[list[i].ID]
	}
	return nil
}

// ListMembers returns the challenge's participants, optionally filtered by name.
// The caller must be a participant.
func (s *ChallengeService) ListMembers(ctx context.Context, userID, challengeID, search string) ([]models.User, error) {
	if _, err := s.load(ctx, s.DB, "", challengeID); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, challengeID, userID); err != nil {
		return nil, err
	}

	q := s.DB.WithContext(ctx).Model(&models.User{}).
		Joins("JOIN challenge_participants ON challenge_participants.user_id = users.id").
		Where("challenge_participants.challenge_id = ?", challengeID)
	if search = strings.TrimSpace(search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(users.user_name) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?", term, term, term)
	}
	var users []models.User
	if err := q.Order("users.user_name ASC").Find(&users).Error; err != nil {
		return nil, storageErr("list challenge members", err, "challenge", challengeID)
	}
	return users, nil
}

// GetLeaderboard ranks every participant, then cuts the requested page.
func (s *ChallengeService) GetLeaderboard(ctx context.Context, userID, challengeID string, page, size int) (*Leaderboard, error) {
	if _, err := s.load(ctx, s.DB, "", challengeID); err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, challengeID, userID); err != nil {
		return nil, err
	}

	ranked, err := rankChallenge(ctx, s.DB, challengeID)
	if err != nil {
		return nil, err
	}
	p := Paginate(len(ranked), page, size)
	slice := ranked[p.Offset:p.End]

	ids := make([]string, len(slice))
	for i, r := range slice {
		ids[i] = r.UserID
	}
	var users []models.User
	if len(ids) > 0 {
		if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
			return nil, storageErr("load leaderboard users", err, "user", "")
		}
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	entries := make([]LeaderboardEntry, len(slice))
	for i, r := range slice {
		u := byID[r.UserID]
		entries[i] = LeaderboardEntry{RankedUser: r, UserName: u.UserName, DisplayName: u.DisplayName(), Picture: u.ProfilePictureURL}
	}
	return &Leaderboard{Page: p, Entries: entries}, nil
}

// rankChallenge ranks the full participant set, ties broken by user ID.
func rankChallenge(ctx context.Context, db *gorm.DB, challengeID string) ([]RankedUser, error) {
	var ids []string
	if err := db.WithContext(ctx).Model(&models.ChallengeParticipant{}).
		Where("challenge_id = ?", challengeID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, storageErr("load participants", err, "challenge", challengeID)
	}
	counts, err := engagementCounts(ctx, db, challengeID, ids)
	if err != nil {
		return nil, err
	}
	return RankByEngagement(ids, func(id string) Engagement { return counts[id] }), nil
}

// engagementCounts sums reactions on each user's posts tagged to the challenge.
func engagementCounts(ctx context.Context, db *gorm.DB, challengeID string, userIDs []string) (map[string]Engagement, error) {
	out := make(map[string]Engagement, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	type row struct {
		UserID   string
		Likes    int64
		Dislikes int64
	}
	var rows []row
	err := db.WithContext(ctx).Table("posts").
		Select("posts.user_id AS user_id, "+
			"SUM(CASE WHEN post_reactions.kind = ? THEN 1 ELSE 0 END) AS likes, "+
			"SUM(CASE WHEN post_reactions.kind = ? THEN 1 ELSE 0 END) AS dislikes",
			models.ReactionLike, models.ReactionDislike).
		Joins("JOIN post_reactions ON post_reactions.post_id = posts.id").
		Where("posts.challenge_id = ? AND posts.user_id IN ?", challengeID, userIDs).
		Group("posts.user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("aggregate engagement", err, "challenge", challengeID)
	}
	for _, r := range rows {
		out[r.UserID] = Engagement{Likes: r.Likes, Dislikes: r.Dislikes}
	}
	return out, nil
}
