package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/vtrnguyen/orisharin-server/internal/apperr"
)

func jsonSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": payload})
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
}

// jsonFail maps the service error taxonomy onto HTTP statuses. Anything not in
// the taxonomy is an unexpected persistence error and reported as a 500
// without leaking internals.
func jsonFail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrUnauthorized):
		return jsonError(c, fiber.StatusUnauthorized, "not a participant")
	case errors.Is(err, apperr.ErrAdminLeave):
		return jsonError(c, fiber.StatusForbidden, apperr.ErrAdminLeave.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return jsonError(c, fiber.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrBadRequest):
		return jsonError(c, fiber.StatusBadRequest, "bad request")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "internal error")
	}
}
