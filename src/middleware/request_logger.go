package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogger emits one structured line per request. It is a no-op when
// the global level is above info.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if zerolog.GlobalLevel() > zerolog.InfoLevel {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		log.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Int("status", c.Response().StatusCode()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Msg("HTTP request")
		return err
	}
}
