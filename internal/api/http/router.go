package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/pantry-service/internal/api/http/handlers"
	"github.com/spec-kit/pantry-service/internal/auth"
	"github.com/spec-kit/pantry-service/internal/events"
	"github.com/spec-kit/pantry-service/internal/observability"
	"github.com/spec-kit/pantry-service/internal/ratelimit"
)

// RateLimitConfig assigns a budget to each abuse-prone route group.
type RateLimitConfig struct {
	Limiter       ratelimit.Limiter
	Login         ratelimit.Policy
	Register      ratelimit.Policy
	Refresh       ratelimit.Policy
	Logout        ratelimit.Policy
	Authenticated ratelimit.Policy
	Logger        *zap.Logger
	OnLimited     func(c *fiber.Ctx, policy ratelimit.Policy, key string)
}

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
	RateLimit      RateLimitConfig
	// Extensions mount collaborator routes under /api/v1, behind the
	// authorization gate and the authenticated rate limit.
	Extensions []func(fiber.Router)
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics.Handler())
	}

	limit := func(policy ratelimit.Policy, key ratelimit.KeyFunc) fiber.Handler {
		return ratelimit.New(ratelimit.MiddlewareConfig{
			Limiter:   cfg.RateLimit.Limiter,
			Policy:    policy,
			KeyFunc:   key,
			Logger:    cfg.RateLimit.Logger,
			OnLimited: cfg.RateLimit.OnLimited,
		})
	}
	authenticated := []fiber.Handler{
		cfg.AuthMiddleware.Handle,
		limit(cfg.RateLimit.Authenticated, keyByPrincipal),
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", limit(cfg.RateLimit.Register, ratelimit.KeyByIP), cfg.Auth.Register)
	authGroup.Post("/login", limit(cfg.RateLimit.Login, ratelimit.KeyByIP), cfg.Auth.Login)
	authGroup.Post("/refresh", limit(cfg.RateLimit.Refresh, ratelimit.KeyByIP), cfg.Auth.Refresh)
	authGroup.Post("/logout", limit(cfg.RateLimit.Logout, ratelimit.KeyByIP), cfg.Auth.Logout)

	authGroup.Get("/me", append(authenticated, cfg.Auth.Me)...)
	authGroup.Post("/logout-all", append(authenticated, cfg.Auth.LogoutAll)...)
	authGroup.Post("/password/change", append(authenticated, cfg.Auth.ChangePassword)...)

	admin := app.Group("/admin", append(authenticated, auth.RequireAdmin())...)
	admin.Patch("/users/:id/status", cfg.Admin.UpdateStatus)
	admin.Patch("/users/:id/role", cfg.Admin.UpdateRole)

	if len(cfg.Extensions) > 0 {
		api := app.Group("/api/v1", authenticated...)
		for _, mount := range cfg.Extensions {
			mount(api)
		}
	}
}

// keyByPrincipal identifies authenticated callers by user id, falling back
// to the client IP.
func keyByPrincipal(c *fiber.Ctx) string {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		return "user:" + principal.UserID
	}
	return ratelimit.KeyByIP(c)
}

// PublishRateLimited returns an OnLimited hook that emits a rate_limited event.
func PublishRateLimited(dispatcher events.Dispatcher) func(c *fiber.Ctx, policy ratelimit.Policy, key string) {
	return func(c *fiber.Ctx, policy ratelimit.Policy, key string) {
		event := events.Event{
			Type: events.EventRateLimited,
			Payload: map[string]any{
				"policy": policy.Name,
				"key":    key,
				"path":   c.Path(),
			},
		}
		if principal, ok := auth.PrincipalFromContext(c); ok {
			event.UserID = principal.UserID
		}
		_ = dispatcher.Publish(c.UserContext(), event)
	}
}
