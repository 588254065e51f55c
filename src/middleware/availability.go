package middleware

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Availability rejects new work while the service is draining for
// shutdown and sheds load once too many requests are in flight. Health
// checks stay reachable so orchestration can observe the drain.
type Availability struct {
	draining    atomic.Bool
	maxInFlight int64
	inFlight    atomic.Int64
}

// NewAvailability builds the gate. maxInFlight <= 0 disables shedding.
func NewAvailability(maxInFlight int64) *Availability {
	return &Availability{maxInFlight: maxInFlight}
}

// Drain marks the service unavailable for new requests.
func (a *Availability) Drain() {
	a.draining.Store(true)
	log.Warn().Msg("Service draining, rejecting new requests")
}

// InFlight reports the number of requests currently being served.
func (a *Availability) InFlight() int64 {
	return a.inFlight.Load()
}

func (a *Availability) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// edge case: health check is always available
		if c.Path() == "/health" {
			return c.Next()
		}

		if a.draining.Load() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service unavailable",
			})
		}

		// edge case: shed load once the in-flight limit is reached
		if a.maxInFlight > 0 && a.inFlight.Load() >= a.maxInFlight {
			log.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int64("in_flight", a.inFlight.Load()).
				Int64("max_in_flight", a.maxInFlight).
				Msg("Request rejected: server overloaded")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service overloaded",
			})
		}

		a.inFlight.Add(1)
		defer a.inFlight.Add(-1)
		return c.Next()
	}
}
