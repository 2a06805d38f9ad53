package handlers

import (
	"errors"
	"strconv"

	"habitquest/middleware"
	"habitquest/services"
	"habitquest/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return fiber.StatusUnauthorized, "not authenticated"
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest, "invalid request"
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound, "not found"
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, services.ErrRequestNotPending):
		return fiber.StatusConflict, "friend request already answered"
	case errors.Is(err, services.ErrConflict):
		return fiber.StatusConflict, "conflict"
	case errors.Is(err, services.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable, "storage unavailable"
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}
	return fiber.StatusInternalServerError, "internal error"
}

// ErrorHandler is installed as the app's fiber.Config.ErrorHandler so that
// handlers can simply return service errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, msg := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		utils.Logger.Error("request_failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	cause := err.Error()
	if status == fiber.StatusInternalServerError {
		cause = ""
	}
	body := fiber.Map{"error": msg}
	if cause != "" && cause != msg {
		body["cause"] = cause
	}
	return c.Status(status).JSON(body)
}

func currentUser(c *fiber.Ctx) (string, error) {
	id, err := middleware.UserID(c)
	if err != nil {
		return "", services.ErrNotAuthenticated
	}
	return id, nil
}

// bindOptional binds a JSON body when one was sent.
func bindOptional(c *fiber.Ctx, dst interface{}) error {
	if len(c.Body()) == 0 {
		return middleware.ValidateStruct(dst)
	}
	return middleware.BindJSON(c, dst)
}

func queryInt(c *fiber.Ctx, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
