// handlers/streak_routes.go
package handlers

import (
	"time"

	"mealmood-community/middleware"
	"mealmood-community/services"

	"github.com/gofiber/fiber/v2"
)

func SetupStreakRoutes(router fiber.Router, streaks *services.StreakService) {
	secured := router

	secured.Get("/mood-goals", func(c *fiber.Ctx) error {
		goals, err := streaks.ListMoodGoals(c.UserContext())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"mood_goals": goals})
	})

	secured.Post("/streak/mood/:moodGoalId", func(c *fiber.Ctx) error {
		res, err := streaks.SubmitMoodCheckIn(c.UserContext(), middleware.UserID(c), c.Params("moodGoalId"), time.Now())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "Mood goal updated successfully", "streak": res})
	})

	secured.Get("/streak/count", func(c *fiber.Ctx) error {
		n, err := streaks.GetStreakCount(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"streak_count": n})
	})

	secured.Get("/streak/ranking", func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		board, err := streaks.GetGlobalMoodRanking(c.UserContext(), page, size)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(board)
	})
}
