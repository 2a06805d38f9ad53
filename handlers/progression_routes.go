package handlers

import (
	"habitquest/middleware"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
)

// SetupProgressionRoutes mounts the caller's profile, progress and XP
// history plus user lookup and search.
func SetupProgressionRoutes(api fiber.Router, users *services.UserService, progression *services.ProgressionService, searchLimit *middleware.RateLimiter) {
	api.Get("/me", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		user, err := users.GetProfile(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})

	api.Patch("/me", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var in services.UpdateProfileInput
		if err := middleware.BindJSON(c, &in); err != nil {
			return err
		}
		user, err := users.UpdateProfile(c.UserContext(), userID, in)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})

	api.Post("/me/avatar", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		file, err := c.FormFile("avatar")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "avatar file is required")
		}
		user, err := users.UploadAvatar(c.UserContext(), userID, file)
		if err != nil {
			return err
		}
		return c.JSON(user)
	})

	api.Get("/me/progress", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		progress, err := progression.GetProgress(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(progress)
	})

	api.Get("/me/xp-history", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		page := queryInt(c, "page", 1)
		size := queryInt(c, "size", 20)
		history, total, err := progression.XPHistory(c.UserContext(), userID, page, size)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"events": history,
			"total":  total,
			"page":   page,
		})
	})

	search := []fiber.Handler{}
	if searchLimit != nil {
		search = append(search, searchLimit.Handler())
	}
	search = append(search, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		results, err := users.SearchUsers(c.UserContext(), userID, c.Query("q"), queryInt(c, "limit", 20))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"users": results})
	})
	api.Get("/users/search", search...)

	api.Get("/users/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		profile, err := users.GetPublicProfile(c.UserContext(), userID, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(profile)
	})
}
