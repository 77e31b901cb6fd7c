// handlers/community_routes.go
package handlers

import (
	"time"

	"mealmood-community/middleware"
	"mealmood-community/models"
	"mealmood-community/services"

	"github.com/gofiber/fiber/v2"
)

// SetupCommunityRoutes mounts groups, group challenges and posts.
// router must already run middleware.UserContextMiddleware.
func SetupCommunityRoutes(router fiber.Router, groups *services.GroupService, challenges *services.ChallengeService, posts *services.PostService) {
	secured := router

	// Groups
	secured.Post("/groups", func(c *fiber.Ctx) error {
		var in services.CreateGroupInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid request body")
		}
		g, err := groups.CreateGroup(c.UserContext(), middleware.UserID(c), in)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Group created successfully", "group": g})
	})
	secured.Post("/groups/:groupId/membership", func(c *fiber.Ctx) error {
		joined, err := groups.ToggleMembership(c.UserContext(), c.Params("groupId"), middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"joined": joined})
	})

	// Group challenges
	secured.Post("/groups/:groupId/challenges", func(c *fiber.Ctx) error {
		start, err := formTime(c, "start_date")
		if err != nil {
			return fail(c, err)
		}
		end, err := formTime(c, "end_date")
		if err != nil {
			return fail(c, err)
		}
		if start == nil || end == nil {
			return badRequest(c, "title, start_date and end_date are required")
		}
		img, err := formImage(c, "challenge_image")
		if err != nil {
			return fail(c, err)
		}
		ch, err := challenges.CreateChallenge(c.UserContext(), middleware.UserID(c), c.Params("groupId"), services.ChallengeInput{
			Title:       c.FormValue("title"),
			Description: c.FormValue("description"),
			StartDate:   *start,
			EndDate:     *end,
		}, img)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Group challenge created successfully", "challenge": ch})
	})

	secured.Get("/groups/:groupId/challenges", func(c *fiber.Ctx) error {
		list, err := challenges.ListGroupChallenges(c.UserContext(), middleware.UserID(c), c.Params("groupId"), models.ChallengeStatus(c.Query("status")))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"challenges": list})
	})

	secured.Get("/groups/:groupId/challenges/joined", func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		list, p, err := challenges.ListJoined(c.UserContext(), middleware.UserID(c), c.Params("groupId"), page, size)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"pagination": p, "challenges": list})
	})

	secured.Put("/groups/:groupId/challenges/:challengeId", func(c *fiber.Ctx) error {
		var in services.ChallengeUpdate
		if v := c.FormValue("title"); v != "" {
			in.Title = &v
		}
		if v := c.FormValue("description"); v != "" {
			in.Description = &v
		}
		var err error
		if in.StartDate, err = formTime(c, "start_date"); err != nil {
			return fail(c, err)
		}
		if in.EndDate, err = formTime(c, "end_date"); err != nil {
			return fail(c, err)
		}
		img, err := formImage(c, "challenge_image")
		if err != nil {
			return fail(c, err)
		}
		ch, err := challenges.UpdateChallenge(c.UserContext(), middleware.UserID(c),
			c.Params("groupId"), c.Params("challengeId"), in, img, time.Now())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Group challenge updated successfully", "challenge": ch})
	})

	secured.Delete("/groups/:groupId/challenges/:challengeId", func(c *fiber.Ctx) error {
		if err := challenges.DeleteChallenge(c.UserContext(), middleware.UserID(c), c.Params("groupId"), c.Params("challengeId")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Group challenge deleted successfully"})
	})

	secured.Post("/groups/:groupId/challenges/:challengeId/toggle", func(c *fiber.Ctx) error {
		ch, err := challenges.Get(c.UserContext(), c.Params("challengeId"))
		if err != nil {
			return fail(c, err)
		}
		if ch.GroupID != c.Params("groupId") {
			return fail(c, &services.NotFoundError{Resource: "challenge", ID: ch.ID})
		}
		res, err := challenges.JoinOrLeaveChallenge(c.UserContext(), middleware.UserID(c), ch.ID, time.Now())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(res)
	})

	secured.Get("/groups/:groupId/challenges/:challengeId/leaderboard", func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		board, err := challenges.GetLeaderboard(c.UserContext(), middleware.UserID(c), c.Params("challengeId"), page, size)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(board)
	})

	secured.Get("/challenges/:challengeId/members", func(c *fiber.Ctx) error {
		users, err := challenges.ListMembers(c.UserContext(), middleware.UserID(c), c.Params("challengeId"), c.Query("search"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"members": users})
	})

	// Posts
	secured.Post("/groups/:groupId/posts", func(c *fiber.Ctx) error {
		img, err := formImage(c, "image")
		if err != nil {
			return fail(c, err)
		}
		post, err := posts.CreatePost(c.UserContext(), middleware.UserID(c), c.Params("groupId"), services.PostInput{
			Title:       c.FormValue("title"),
			Description: c.FormValue("description"),
			ChallengeID: c.FormValue("challenge_id"),
		}, img)
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Post created successfully", "post": post})
	})
	secured.Post("/posts/:postId/like", reactionHandler(posts, models.ReactionLike))
	secured.Post("/posts/:postId/dislike", reactionHandler(posts, models.ReactionDislike))
	secured.Delete("/posts/:postId", func(c *fiber.Ctx) error {
		if err := posts.DeletePost(c.UserContext(), middleware.UserID(c), c.Params("postId")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Post deleted successfully"})
	})
}

func reactionHandler(posts *services.PostService, kind models.ReactionKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := posts.ToggleReaction(c.UserContext(), middleware.UserID(c), c.Params("postId"), kind)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(res)
	}
}
