package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/kursadbilgin/signature-gateway/internal/config"
	"github.com/kursadbilgin/signature-gateway/internal/handler"
	infraredis "github.com/kursadbilgin/signature-gateway/internal/infra/redis"
	"github.com/kursadbilgin/signature-gateway/internal/observability"
	"github.com/kursadbilgin/signature-gateway/internal/provider"
	"github.com/kursadbilgin/signature-gateway/internal/ratelimit"
	"github.com/kursadbilgin/signature-gateway/internal/service"
	"github.com/kursadbilgin/signature-gateway/internal/transport"
	"go.uber.org/zap"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("signature gateway stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if !cfg.HasAPIKey() {
		logger.Warn("DOCUSEAL_API_KEY is not set; submission routes will reject requests")
	}

	metrics := observability.NewMetrics()

	client, err := provider.NewDocuSealClient(provider.DocuSealOptions{
		BaseURL:    cfg.DocuSealAPIBase,
		APIKey:     cfg.DocuSealAPIKey,
		Timeout:    cfg.ProviderTimeout(),
		RetryCount: cfg.ProviderRetryCount,
		Logger:     logger,
		Metrics:    metrics,
	})
	if err != nil {
		return fmt.Errorf("provider client initialization failed: %w", err)
	}

	submissions, err := service.NewSubmissionService(client, cfg.DeleteConcurrency, logger)
	if err != nil {
		return fmt.Errorf("submission service initialization failed: %w", err)
	}
	submissions.SetMetrics(metrics)

	var limiter ratelimit.RateLimiter
	readyChecks := map[string]handler.Pinger{}

	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		defer rdb.Close()

		redisLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitMaxRequests, cfg.RateLimitWindow())
		if err != nil {
			return fmt.Errorf("redis rate limiter initialization failed: %w", err)
		}
		limiter = redisLimiter
		readyChecks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("using redis rate limiter")
	}

	app, err := transport.NewApp(transport.Deps{
		Config:      cfg,
		Logger:      logger,
		Metrics:     metrics,
		Submissions: submissions,
		Limiter:     limiter,
		ReadyChecks: readyChecks,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("http app initialization failed: %w", err)
	}

	listenErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("signature gateway started",
			zap.String("address", address),
			zap.String("env", cfg.AppEnv),
			zap.String("version", version),
		)
		listenErr <- app.Listen(address)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down signature gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	logger.Info("signature gateway shutdown complete")
	return nil
}
