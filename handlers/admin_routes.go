package handlers

import (
	"habitquest/middleware"
	"habitquest/models"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
)

type grantXPBody struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Amount int64  `json:"amount" validate:"required,min=1,max=100000"`
	Reason string `json:"reason" validate:"max=200"`
}

type seedBody struct {
	Achievements []models.Achievement `json:"achievements"`
}

// SetupAdminRoutes mounts internal routes. The caller guards the router
// with ServiceTokenMiddleware.
func SetupAdminRoutes(admin fiber.Router, progression *services.ProgressionService, achievements *services.AchievementService) {
	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		var body grantXPBody
		if err := middleware.BindJSON(c, &body); err != nil {
			return err
		}
		award, err := progression.GrantXP(c.UserContext(), body.UserID, body.Amount, body.Reason)
		if err != nil {
			return err
		}
		return c.JSON(award)
	})

	// An empty body seeds the built-in catalog.
	admin.Post("/achievements/seed", func(c *fiber.Ctx) error {
		var body seedBody
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		catalog := body.Achievements
		if len(catalog) == 0 {
			catalog = models.DefaultAchievements
		}
		n, err := achievements.SeedCatalog(c.UserContext(), catalog)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"seeded": n})
	})
}
