package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/pantry-service/internal/api/http"
	"github.com/spec-kit/pantry-service/internal/api/http/handlers"
	"github.com/spec-kit/pantry-service/internal/auth"
	"github.com/spec-kit/pantry-service/internal/config"
	"github.com/spec-kit/pantry-service/internal/events"
	"github.com/spec-kit/pantry-service/internal/observability"
	"github.com/spec-kit/pantry-service/internal/persistence"
	"github.com/spec-kit/pantry-service/internal/ratelimit"
	"github.com/spec-kit/pantry-service/internal/repository"
	"github.com/spec-kit/pantry-service/internal/service"
	"github.com/spec-kit/pantry-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		userRepo    repository.UserRepository
		refreshRepo repository.RefreshTokenRepository
	)
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		userRepo = repository.NewUserRepository(pg.PoolHandle())
		refreshRepo = repository.NewRefreshTokenRepository(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory credential store; data is lost on restart")
		userRepo = repository.NewMemoryUserRepository()
		refreshRepo = repository.NewMemoryRefreshTokenRepository()
	}

	var (
		redis   *persistence.Redis
		limiter ratelimit.Limiter
	)
	switch cfg.RateLimit.Backend {
	case "redis":
		redis = persistence.NewRedis(ctx, cfg.Redis, logger)
		defer redis.Close()
		limiter = ratelimit.NewRedisLimiter(redis.Client, cfg.App.Name+":ratelimit")
	default:
		memLimiter := ratelimit.NewMemoryLimiter(time.Minute, nil)
		defer memLimiter.Stop()
		limiter = memLimiter
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Algorithm:  cfg.Auth.JWTAlgorithm,
		AccessTTL:  cfg.Auth.AccessTTL(),
		RefreshTTL: cfg.Auth.RefreshTTL(),
		Leeway:     cfg.Auth.Leeway(),
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:         userRepo,
		RefreshTokenRepo: refreshRepo,
		Tokens:           tokens,
		Events:           dispatcher,
		Logger:           logger,
	})

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		admin, err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			logger.Fatal("failed to ensure admin account", zap.Error(err))
		}
		logger.Info("admin account ready", zap.String("user_id", admin.ID))
	}

	janitor := worker.NewLedgerJanitor(authService.Ledger(), cfg.Ledger.SweepInterval(), cfg.Ledger.Retention(), logger)
	go janitor.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.IsProduction(),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:      logger,
		Metrics:     metrics,
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})

	window := cfg.RateLimit.Window()
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Admin:          handlers.NewAdminHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger),
		Metrics:        metrics,
		RateLimit: httptransport.RateLimitConfig{
			Limiter:       limiter,
			Login:         ratelimit.Policy{Name: "login", Limit: cfg.RateLimit.Login, Window: window},
			Register:      ratelimit.Policy{Name: "register", Limit: cfg.RateLimit.Register, Window: window},
			Refresh:       ratelimit.Policy{Name: "refresh", Limit: cfg.RateLimit.Refresh, Window: window},
			Logout:        ratelimit.Policy{Name: "logout", Limit: cfg.RateLimit.Logout, Window: window},
			Authenticated: ratelimit.Policy{Name: "authenticated", Limit: cfg.RateLimit.Authenticated, Window: window},
			Logger:        logger,
			OnLimited:     httptransport.PublishRateLimited(dispatcher),
		},
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
