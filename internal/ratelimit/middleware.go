package ratelimit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/pantry-service/pkg/util/errorutil"
)

// KeyFunc derives the caller identity for a request.
type KeyFunc func(c *fiber.Ctx) string

// KeyByIP identifies callers by client IP.
func KeyByIP(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}

// MiddlewareConfig wires a policy to a limiter.
type MiddlewareConfig struct {
	Limiter Limiter
	Policy  Policy
	KeyFunc KeyFunc
	Logger  *zap.Logger
	// OnLimited is called once per rejected request.
	OnLimited func(c *fiber.Ctx, policy Policy, key string)
}

// New returns a handler that rejects over-budget requests with RATE_LIMITED.
// Limiter backend failures let the request through and are logged.
func New(cfg MiddlewareConfig) fiber.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if cfg.Limiter == nil || cfg.Policy.Limit <= 0 {
			return c.Next()
		}

		key := cfg.Policy.Name + ":" + cfg.KeyFunc(c)
		decision, err := cfg.Limiter.Allow(c.UserContext(), key, cfg.Policy.Limit, cfg.Policy.Window)
		if err != nil {
			cfg.Logger.Warn("rate limiter unavailable, allowing request",
				zap.String("policy", cfg.Policy.Name),
				zap.Error(err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(apperrors.RetryAfterSeconds(decision.RetryAfter)))
			if cfg.OnLimited != nil {
				cfg.OnLimited(c, cfg.Policy, key)
			}
			return apperrors.NewRateLimited(decision.RetryAfter)
		}
		return c.Next()
	}
}
