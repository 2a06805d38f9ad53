package handlers

import (
	"habitquest/middleware"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
)

func SetupHabitRoutes(api fiber.Router, habits *services.HabitService) {
	api.Get("/habits", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		list, err := habits.ListHabits(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"habits": list})
	})

	api.Post("/habits", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.CreateHabitInput
		if err := middleware.BindJSON(c, &in); err != nil {
			return err
		}
		habit, err := habits.CreateHabit(c.UserContext(), userID, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(habit)
	})

	api.Get("/habits/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		habit, err := habits.GetHabit(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(habit)
	})

	api.Patch("/habits/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.UpdateHabitInput
		if err := middleware.BindJSON(c, &in); err != nil {
			return err
		}
		habit, err := habits.UpdateHabit(c.UserContext(), userID, c.Params("id"), in)
		if err != nil {
			return err
		}
		return c.JSON(habit)
	})

	api.Delete("/habits/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		if err := habits.DeleteHabit(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Body is optional: {"count": 1, "notes": "..."}
	api.Post("/habits/:id/complete", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.CompleteHabitInput
		if err := bindOptional(c, &in); err != nil {
			return err
		}
		result, err := habits.CompleteHabit(c.UserContext(), userID, c.Params("id"), in)
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	api.Get("/habits/:id/logs", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		logs, err := habits.ListLogs(c.UserContext(), userID, c.Params("id"), queryInt(c, "limit", 50))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"logs": logs})
	})
}
