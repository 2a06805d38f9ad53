package handlers

import (
	"habitquest/middleware"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
)

type sendFriendRequestBody struct {
	ReceiverID string `json:"receiver_id" validate:"required,uuid"`
}

type respondBody struct {
	Accept *bool `json:"accept" validate:"required"`
}

// SetupSocialRoutes mounts achievements, friends and leaderboards.
func SetupSocialRoutes(api fiber.Router, achievements *services.AchievementService, friends *services.FriendService,
	boards *services.LeaderboardService, requestLimit *middleware.RateLimiter) {

	api.Get("/achievements", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		list, err := achievements.ListForUser(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"achievements": list})
	})

	// Body is an optional context: {"streak": 7, "completed_at": "..."}
	api.Post("/achievements/check", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var cc services.CheckContext
		if err := bindOptional(c, &cc); err != nil {
			return err
		}
		unlocked, err := achievements.Check(c.UserContext(), userID, cc)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"unlocked": unlocked})
	})

	api.Get("/friends", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		list, err := friends.ListFriends(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"friends": list})
	})

	api.Delete("/friends/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		if err := friends.RemoveFriend(c.UserContext(), userID, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/friends/requests", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		pending, err := friends.ListPendingRequests(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(pending)
	})

	send := []fiber.Handler{}
	if requestLimit != nil {
		send = append(send, requestLimit.Handler())
	}
	send = append(send, func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var body sendFriendRequestBody
		if err := middleware.BindJSON(c, &body); err != nil {
			return err
		}
		req, err := friends.SendFriendRequest(c.UserContext(), userID, body.ReceiverID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(req)
	})
	api.Post("/friends/requests", send...)

	api.Post("/friends/requests/:id/respond", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		var body respondBody
		if err := middleware.BindJSON(c, &body); err != nil {
			return err
		}
		req, err := friends.RespondToFriendRequest(c.UserContext(), c.Params("id"), userID, *body.Accept)
		if err != nil {
			return err
		}
		return c.JSON(req)
	})

	api.Delete("/friends/requests/:id", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		if err := friends.CancelFriendRequest(c.UserContext(), c.Params("id"), userID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/leaderboard/friends", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		entries, err := boards.Friends(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"entries": entries})
	})

	api.Get("/leaderboard/global", func(c *fiber.Ctx) error {
		userID, err := currentUser(c)
		if err != nil {
			return err
		}
		entries, err := boards.Global(c.UserContext(), userID, queryInt(c, "limit", 50))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"entries": entries})
	})
}
