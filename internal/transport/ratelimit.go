package transport

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/signature-gateway/internal/observability"
	"github.com/kursadbilgin/signature-gateway/internal/ratelimit"
	"go.uber.org/zap"
)

// RateLimit enforces a per-IP budget through a shared limiter. Limiter
// errors let the request through.
func RateLimit(limiter ratelimit.RateLimiter, logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		decision, err := limiter.Allow(c.UserContext(), c.IP())
		if err != nil {
			observability.WithContextLogger(logger, c.UserContext()).Warn("rate limiter unavailable, allowing request",
				zap.String("ip", c.IP()),
				zap.Error(err),
			)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.Itoa(retryAfterSeconds(decision.ResetIn)))

		if !decision.Allowed {
			metrics.IncRateLimited("redis")
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(decision.ResetIn)))
			return tooManyRequests(c)
		}

		return c.Next()
	}
}
