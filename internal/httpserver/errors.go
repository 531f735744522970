package httpserver

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// writeError standardizes JSON error responses.
func writeError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}
