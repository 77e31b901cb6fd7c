// handlers/notification_routes.go
package handlers

import (
	"mealmood-community/middleware"
	"mealmood-community/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(router fiber.Router, notifications *services.NotificationService) {
	secured := router

	secured.Get("/notifications/stream", notifications.StreamNotificationsSSE)

	secured.Get("/notifications", func(c *fiber.Ctx) error {
		page, size := pageParams(c)
		items, p, err := notifications.List(c.UserContext(), middleware.UserID(c), page, size)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"pagination": p, "notifications": items})
	})

	secured.Patch("/notifications/:id/read", func(c *fiber.Ctx) error {
		n, err := notifications.MarkRead(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(n)
	})
}
