package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"habitquest/models"
	"habitquest/services"
	"habitquest/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

// TokenVerifier resolves an access token to the account it was issued for.
// *services.AuthServiceClient and *JWTVerifier implement it.
type TokenVerifier interface {
	ValidateToken(ctx context.Context, accessToken string) (*services.AuthUser, error)
}

// UserEnsurer creates the local user row on first sight of an account.
type UserEnsurer interface {
	EnsureUser(ctx context.Context, userID, email string) (*models.User, error)
}

// providerClaims are the claims the auth provider puts in access tokens.
type providerClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 tokens signed with the provider's shared secret.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) ValidateToken(_ context.Context, accessToken string) (*services.AuthUser, error) {
	token, err := jwt.ParseWithClaims(accessToken, &providerClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", services.ErrNotAuthenticated, err)
	}

	claims, ok := token.Claims.(*providerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token", services.ErrNotAuthenticated)
	}
	return &services.AuthUser{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// NewTokenVerifier verifies locally when a secret is configured and asks the
// provider otherwise.
func NewTokenVerifier(secret string, client *services.AuthServiceClient) TokenVerifier {
	if secret != "" {
		return NewJWTVerifier(secret)
	}
	return client
}

// UserContextMiddleware authenticates the bearer token and stores the user
// id and email in c.Locals for handlers.
func UserContextMiddleware(verifier TokenVerifier, users UserEnsurer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == header {
			return unauthorized(c, "missing bearer token")
		}
		return authenticate(c, verifier, users, token)
	}
}

func authenticate(c *fiber.Ctx, verifier TokenVerifier, users UserEnsurer, token string) error {
	ctx := c.UserContext()
	user, err := verifier.ValidateToken(ctx, token)
	if err != nil {
		utils.Logger.Info("auth_rejected", zap.String("path", c.Path()), zap.Error(err))
		return unauthorized(c, "invalid or expired token")
	}
	if _, err := uuid.Parse(user.ID); err != nil {
		utils.Logger.Warn("auth_bad_subject", zap.String("sub", user.ID))
		return unauthorized(c, "token subject is not a user id")
	}

	if users != nil {
		if _, err := users.EnsureUser(ctx, user.ID, user.Email); err != nil {
			utils.Logger.Error("ensure_user_failed", zap.String("user_id", user.ID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load user",
			})
		}
	}

	c.Locals(UserIDKey, user.ID)
	c.Locals(UserEmailKey, user.Email)
	return c.Next()
}

func unauthorized(c *fiber.Ctx, cause string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
		"cause": cause,
	})
}

// UserID returns the id stored by the auth middleware.
func UserID(c *fiber.Ctx) (string, error) {
	id, _ := c.Locals(UserIDKey).(string)
	if id == "" {
		return "", errors.New("user id missing from request context")
	}
	return id, nil
}
