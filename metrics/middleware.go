package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Middleware is a fiber middleware that records HTTP request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		code := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			} else {
				code = fiber.StatusInternalServerError
			}
		}
		route := "unknown"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		ObserveHTTPRequest(c.Method(), route, code, time.Since(start))
		return err
	}
}
