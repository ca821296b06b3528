package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/vtrnguyen/orisharin-server/internal/auth"
)

func JWTAuthMiddleware(validator auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			return jsonError(c, fiber.StatusUnauthorized, "missing auth")
		}
		token := strings.TrimPrefix(h, "Bearer ")
		userID, err := validator.Verify(token)
		if err != nil {
			return jsonError(c, fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals("user_id", userID)
		return c.Next()
	}
}
