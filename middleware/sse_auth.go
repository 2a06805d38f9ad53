package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// SSEAuthMiddleware reads the access token from the `token` query parameter,
// since browsers cannot set headers on an EventSource.
//
// Usage:
//
//	api.Get("/events/stream", middleware.SSEAuthMiddleware(verifier, users), stream.StreamUserEventsSSE)
func SSEAuthMiddleware(verifier TokenVerifier, users UserEnsurer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		return authenticate(c, verifier, users, token)
	}
}
