package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"mealmood-community/models"
)

func newPostFixture(t *testing.T) (*PostService, models.Group, *models.Post) {
	t.Helper()
	db := newTestDB(t)
	for _, id := range []string{"owner", "author", "fan", "outsider"} {
		seedUser(t, db, id)
	}
	g := seedGroup(t, db, "owner", "author", "fan")
	svc := NewPostService(db, NewGroupService(db), &fakeImageStore{})

	post, err := svc.CreatePost(context.Background(), "author", g.ID, PostInput{Title: "Lentil soup"}, nil)
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return svc, g, post
}

func TestCreatePostRules(t *testing.T) {
	ctx := context.Background()
	svc, g, _ := newPostFixture(t)

	if _, err := svc.CreatePost(ctx, "outsider", g.ID, PostInput{Title: "hi"}, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider: err = %v", err)
	}
	if _, err := svc.CreatePost(ctx, "author", g.ID, PostInput{Title: " "}, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("blank title: err = %v", err)
	}
	if _, err := svc.CreatePost(ctx, "author", g.ID, PostInput{Title: "x", ChallengeID: "nope"}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown challenge: err = %v", err)
	}

	other := seedGroup(t, svc.DB, "owner")
	foreign := seedChallenge(t, svc.DB, other.ID, baseTime, baseTime.Add(time.Hour), models.ChallengeStatusOpen)
	if _, err := svc.CreatePost(ctx, "author", g.ID, PostInput{Title: "x", ChallengeID: foreign.ID}, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("challenge from another group: err = %v", err)
	}

	own := seedChallenge(t, svc.DB, g.ID, baseTime, baseTime.Add(time.Hour), models.ChallengeStatusOpen)
	img := &ImageUpload{Filename: "plate.PNG", ContentType: "image/png", Data: []byte("png")}
	post, err := svc.CreatePost(ctx, "author", g.ID, PostInput{Title: "Tagged", ChallengeID: own.ID}, img)
	if err != nil {
		t.Fatalf("tagged post: %v", err)
	}
	if post.ChallengeID == nil || *post.ChallengeID != own.ID || post.ImageURL == "" {
		t.Errorf("post = %+v", post)
	}
}

func TestToggleReactionMutualExclusion(t *testing.T) {
	ctx := context.Background()
	svc, _, post := newPostFixture(t)

	steps := []struct {
		kind     models.ReactionKind
		want     *models.ReactionKind
		likes    int64
		dislikes int64
	}{
		{models.ReactionLike, reaction(models.ReactionLike), 1, 0},
		{models.ReactionDislike, reaction(models.ReactionDislike), 0, 1},
		{models.ReactionDislike, nil, 0, 0},
		{models.ReactionLike, reaction(models.ReactionLike), 1, 0},
		{models.ReactionLike, nil, 0, 0},
	}
	for i, s := range steps {
		res, err := svc.ToggleReaction(ctx, "fan", post.ID, s.kind)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if (res.Reaction == nil) != (s.want == nil) || (res.Reaction != nil && *res.Reaction != *s.want) {
			t.Errorf("step %d: reaction = %v, want %v", i, res.Reaction, s.want)
		}
		if res.LikesCount != s.likes || res.DislikesCount != s.dislikes {
			t.Errorf("step %d: counts = %d/%d, want %d/%d", i, res.LikesCount, res.DislikesCount, s.likes, s.dislikes)
		}
	}

	if _, err := svc.ToggleReaction(ctx, "outsider", post.ID, models.ReactionLike); !errors.Is(err, ErrForbidden) {
		t.Errorf("outsider: err = %v", err)
	}
	if _, err := svc.ToggleReaction(ctx, "fan", post.ID, "love"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad kind: err = %v", err)
	}
	if _, err := svc.ToggleReaction(ctx, "fan", "missing", models.ReactionLike); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post: err = %v", err)
	}
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()
	svc, g, post := newPostFixture(t)
	if _, err := svc.ToggleReaction(ctx, "fan", post.ID, models.ReactionLike); err != nil {
		t.Fatalf("like: %v", err)
	}

	if err := svc.DeletePost(ctx, "fan", post.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-author: err = %v", err)
	}
	if err := svc.DeletePost(ctx, "author", post.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	var n int64
	svc.DB.Model(&models.PostReaction{}).Where("post_id = ?", post.ID).Count(&n)
	if n != 0 {
		t.Errorf("reactions left = %d", n)
	}

	second, _ := svc.CreatePost(ctx, "author", g.ID, PostInput{Title: "Again"}, nil)
	if err := svc.DeletePost(ctx, "owner", second.ID); err != nil {
		t.Errorf("owner delete: %v", err)
	}
	if err := svc.DeletePost(ctx, "owner", second.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func reaction(k models.ReactionKind) *models.ReactionKind { return &k }
