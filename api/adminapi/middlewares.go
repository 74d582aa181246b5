package adminapi

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// auditMiddleware logs requests that successfully modify state.
// GET and HEAD requests pass through silently.
func auditMiddleware(c *fiber.Ctx) error {
	if err := c.Next(); err != nil {
		return err
	}
	if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
		return nil
	}
	status := c.Response().StatusCode()
	if status >= 200 && status < 400 {
		entry := log.WithField("method", c.Method()).WithField("path", c.Path()).WithField("status", status)
		if user, ok := c.Locals(localsUsername).(string); ok {
			entry = entry.WithField("user", user)
		}
		entry.Info("admin api change")
	}
	return nil
}
