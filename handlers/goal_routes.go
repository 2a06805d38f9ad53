package handlers

import (
	"habitquest/middleware"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGoalRoutes(api fiber.Router, goals *services.GoalService) {
	api.Get("/goals", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		list, err := goals.ListGoals(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"goals": list})
	})

	api.Post("/goals", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.CreateGoalInput
		if err := middleware.BindJSON(c, &in); err != nil {
			return err
		}
		goal, err := goals.CreateGoal(c.UserContext(), userID, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(goal)
	})

	api.Get("/goals/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		goal, err := goals.GetGoal(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(goal)
	})

	api.Delete("/goals/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		if err := goals.DeleteGoal(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/goals/:id/milestones", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.CreateMilestoneInput
		if err := middleware.BindJSON(c, &in); err != nil {
			return err
		}
		result, err := goals.AddMilestone(c.UserContext(), userID, c.Params("id"), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(result)
	})

	api.Delete("/goals/:id/milestones/:mid", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		result, err := goals.DeleteMilestone(c.UserContext(), userID, c.Params("id"), c.Params("mid"))
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	api.Post("/goals/:id/milestones/:mid/complete", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		result, err := goals.CompleteMilestone(c.UserContext(), userID, c.Params("id"), c.Params("mid"))
		if err != nil {
			return err
		}
		return c.JSON(result)
	})

	api.Post("/goals/:id/milestones/:mid/uncomplete", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		result, err := goals.UncompleteMilestone(c.UserContext(), userID, c.Params("id"), c.Params("mid"))
		if err != nil {
			return err
		}
		return c.JSON(result)
	})
}
