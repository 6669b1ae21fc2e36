package validation

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// DecorateWithBodyEx parses and validates the request body before invoking
// the typed handler. Validation errors flow out raw for the validation
// middleware to render.
func DecorateWithBodyEx[T any](v *validator.Validate, handle func(c *fiber.Ctx, req *T) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := new(T)

		if err := c.BodyParser(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		}

		if err := v.Struct(req); err != nil {
			return fmt.Errorf("request validation failed: %w", err)
		}

		return handle(c, req)
	}
}
