package middleware

import (
	"crypto/subtle"
	"strings"

	"habitquest/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ServiceTokenMiddleware guards internal routes with a shared token sent as
// X-Service-Token or as a bearer token. An empty expected token rejects
// every request.
func ServiceTokenMiddleware(expected string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			// accept the raw header value when there is no "Bearer " prefix
			token = strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		}
		if expected == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			utils.Logger.Warn("service_token_rejected", zap.String("path", c.Path()), zap.String("ip", c.IP()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid service token",
			})
		}
		return c.Next()
	}
}
