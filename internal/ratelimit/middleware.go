package ratelimit

import (
	"log"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// fallbackClientID identifies requests with no forwarded address (direct
// hits, health probes behind the proxy).
const fallbackClientID = "127.0.0.1"

// ClientID derives the rate-limit identifier from the first hop of
// X-Forwarded-For, falling back to a constant when absent.
func ClientID(c *fiber.Ctx) string {
	fwd := c.Get(fiber.HeaderXForwardedFor)
	if fwd == "" {
		return fallbackClientID
	}
	first, _, _ := strings.Cut(fwd, ",")
	first = strings.TrimSpace(first)
	if first == "" {
		return fallbackClientID
	}
	return first
}

// Middleware short-circuits over-quota clients with 429 before any request
// validation runs. On a window-store failure it logs and lets the request
// through: the roster API stays available when redis does not.
func Middleware(l *Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := l.Allow(c.Context(), ClientID(c))
		if err != nil {
			log.Printf("rate limit check failed: %v", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Max()))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if !d.Allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests",
			})
		}
		return c.Next()
	}
}
