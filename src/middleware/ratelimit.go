package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// RateLimiter enforces a fixed-window per-client request cap, keyed by
// client IP.
type RateLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	counts  map[string]int
	current int64 // window number the counters belong to
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		counts: make(map[string]int),
	}
}

func (rl *RateLimiter) Allow(clientIP string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	window := now.UnixNano() / int64(rl.window)
	if window != rl.current {
		// edge case: window rolled over, all counters reset together
		rl.current = window
		rl.counts = make(map[string]int)
	}

	if rl.counts[clientIP] >= rl.max {
		return false
	}
	rl.counts[clientIP]++
	return true
}

func clientIP(c *fiber.Ctx) string {
	if ip := c.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := c.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.IP()
}

func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := clientIP(c)
		if !rl.Allow(ip, time.Now()) {
			log.Warn().
				Str("client_ip", ip).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Int("max_requests", rl.max).
				Msg("Rate limit exceeded")
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rl.max))
		c.Set("X-RateLimit-Window", rl.window.String())
		return c.Next()
	}
}
