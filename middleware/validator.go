package middleware

import (
	"errors"
	"fmt"
	"strings"

	"habitquest/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// BindJSON parses the request body into dst and validates it. Failures are
// returned as services.ErrValidation with the offending fields listed.
func BindJSON(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", services.ErrValidation, err)
	}
	if err := ValidateStruct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", services.ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", services.ErrValidation, err)
	}
	return nil
}
