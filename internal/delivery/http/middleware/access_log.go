package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/phuslu/log"
)

// AccessLog logs one line per request with method, path, status and
// latency.
func AccessLog(logger *log.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		if logger != nil {
			status := c.Response().StatusCode()
			logger.Info().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Msg("request")
		}
		return err
	}
}
