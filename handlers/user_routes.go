// handlers/user_routes.go
package handlers

import (
	"strconv"

	"mealmood-community/middleware"
	"mealmood-community/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(router fiber.Router, users *services.UserService) {
	secured := router

	secured.Get("/users/me", func(c *fiber.Ctx) error {
		u, err := users.Get(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"user": u, "display_name": u.DisplayName()})
	})

	secured.Get("/users", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		list, err := users.Search(c.UserContext(), c.Query("search"), limit)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"users": list})
	})
}
