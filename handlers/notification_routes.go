package handlers

import (
	"habitquest/middleware"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
)

func SetupNotificationRoutes(api fiber.Router, notifications *services.NotificationService, feedback *services.FeedbackService) {
	api.Get("/notifications", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		list, err := notifications.List(c.UserContext(), userID, c.QueryBool("unread"), queryInt(c, "limit", 50))
		if err != nil {
			return err
		}
		unread, err := notifications.UnreadCount(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"notifications": list, "unread": unread})
	})

	api.Post("/notifications/read-all", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		n, err := notifications.MarkAllRead(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"marked": n})
	})

	api.Post("/notifications/:id/read", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		if err := notifications.MarkRead(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/feedback", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.SubmitFeedbackInput
		if err := middleware.BindJSON(c, &in); err != nil {
			return err
		}
		fb, err := feedback.SubmitFeedback(c.UserContext(), userID, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fb)
	})
}
