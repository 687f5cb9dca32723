package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/kursadbilgin/signature-gateway/internal/config"
	"github.com/kursadbilgin/signature-gateway/internal/handler"
	"github.com/kursadbilgin/signature-gateway/internal/observability"
	"github.com/kursadbilgin/signature-gateway/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	appName        = "signature-gateway"
	defaultVersion = "1.0.0"
)

// Deps are the collaborators the HTTP app is assembled from. Limiter and
// ReadyChecks are optional.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Submissions handler.SubmissionService
	Limiter     ratelimit.RateLimiter
	ReadyChecks map[string]handler.Pinger
	Version     string
}

func NewApp(deps Deps) (*fiber.App, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Submissions == nil {
		return nil, fmt.Errorf("submission service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	version := deps.Version
	if version == "" {
		version = defaultVersion
	}
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		AppName:               appName,
		BodyLimit:             cfg.BodyLimitBytes(),
		ErrorHandler:          handler.ErrorHandler(logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(cfg.CORSAllowOrigins),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}))
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: observability.RequestIDLocal,
	}))
	app.Use(observability.RequestLogger(logger))
	if deps.Metrics != nil {
		app.Use(deps.Metrics.HTTPMiddleware())
	}

	if deps.Limiter != nil {
		app.Use(RateLimit(deps.Limiter, logger, deps.Metrics))
	} else {
		app.Use(memoryLimiter(cfg, deps.Metrics))
	}

	handler.RegisterHealthRoutes(app, version, deps.ReadyChecks)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	if err := handler.RegisterSubmissionRoutes(app, deps.Submissions, cfg.HasAPIKey); err != nil {
		return nil, err
	}

	app.Use(handler.NotFoundHandler())

	return app, nil
}

func memoryLimiter(cfg *config.Config, metrics *observability.Metrics) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.RateLimitMaxRequests,
		Expiration: cfg.RateLimitWindow(),
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			metrics.IncRateLimited("memory")
			return tooManyRequests(c)
		},
	})
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": "Too many requests from this IP, please try again later.",
	})
}

func corsOrigins(raw string) string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}

func retryAfterSeconds(resetIn time.Duration) int {
	seconds := int((resetIn + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}
