package handlers

import (
	"context"
	"time"

	"habitquest/middleware"
	"habitquest/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services is everything the HTTP layer talks to.
type Services struct {
	Users         *services.UserService
	Progression   *services.ProgressionService
	Habits        *services.HabitService
	Goals         *services.GoalService
	Achievements  *services.AchievementService
	Friends       *services.FriendService
	Leaderboards  *services.LeaderboardService
	Notifications *services.NotificationService
	Feedback      *services.FeedbackService
	Stream        *services.EventStream
}

// RouteOptions configures Setup. Users defaults to svc.Progression and Ping
// reports database health for /health.
type RouteOptions struct {
	Verifier      middleware.TokenVerifier
	Users         middleware.UserEnsurer
	ServiceToken  string
	FriendLimiter *middleware.RateLimiter
	SearchLimiter *middleware.RateLimiter
	Ping          func(ctx context.Context) error
}

func Setup(app *fiber.App, svc Services, opts RouteOptions) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if opts.Ping != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := opts.Ping(ctx); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "degraded",
					"cause":  err.Error(),
				})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	users := opts.Users
	if users == nil {
		users = svc.Progression
	}

	v1 := app.Group("/api/v1")

	admin := v1.Group("/admin", middleware.ServiceTokenMiddleware(opts.ServiceToken))
	SetupAdminRoutes(admin, svc.Progression, svc.Achievements)

	// EventSource cannot send headers, so the stream authenticates by query.
	v1.Get("/events/stream", middleware.SSEAuthMiddleware(opts.Verifier, users), svc.Stream.StreamUserEventsSSE)

	secured := v1.Group("", middleware.UserContextMiddleware(opts.Verifier, users))
	SetupProgressionRoutes(secured, svc.Users, svc.Progression, opts.SearchLimiter)
	SetupHabitRoutes(secured, svc.Habits)
	SetupGoalRoutes(secured, svc.Goals)
	SetupSocialRoutes(secured, svc.Achievements, svc.Friends, svc.Leaderboards, opts.FriendLimiter)
	SetupNotificationRoutes(secured, svc.Notifications, svc.Feedback)
}
