package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	APIPort              int    `env:"PORT,default=3001"`
	AppEnv               string `env:"APP_ENV,default=development"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
	DocuSealAPIBase      string `env:"DOCUSEAL_API_BASE,default=https://api.docuseal.com"`
	DocuSealAPIKey       string `env:"DOCUSEAL_API_KEY"`
	ProviderTimeoutMS    int    `env:"PROVIDER_TIMEOUT_MS,default=30000"`
	ProviderRetryCount   int    `env:"PROVIDER_RETRY_COUNT,default=0"`
	DeleteConcurrency    int    `env:"DELETE_CONCURRENCY,default=16"`
	RateLimitWindowMS    int    `env:"RATE_LIMIT_WINDOW_MS,default=900000"`
	RateLimitMaxRequests int    `env:"RATE_LIMIT_MAX_REQUESTS,default=10000000"`
	RedisURL             string `env:"REDIS_URL"`
	BodyLimitMB          int    `env:"BODY_LIMIT_MB,default=50"`
	CORSAllowOrigins     string `env:"CORS_ALLOW_ORIGINS,default=*"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DocuSealAPIBase) == "" {
		return fmt.Errorf("failed to load config: DOCUSEAL_API_BASE must not be empty")
	}
	if c.ProviderTimeoutMS < 0 {
		return fmt.Errorf("failed to load config: PROVIDER_TIMEOUT_MS must be >= 0")
	}
	if c.ProviderRetryCount < 0 {
		return fmt.Errorf("failed to load config: PROVIDER_RETRY_COUNT must be >= 0")
	}
	if c.RateLimitWindowMS <= 0 {
		return fmt.Errorf("failed to load config: RATE_LIMIT_WINDOW_MS must be > 0")
	}
	if c.RateLimitMaxRequests <= 0 {
		return fmt.Errorf("failed to load config: RATE_LIMIT_MAX_REQUESTS must be > 0")
	}
	return nil
}

// HasAPIKey reports whether a provider credential is configured.
func (c *Config) HasAPIKey() bool {
	return c != nil && strings.TrimSpace(c.DocuSealAPIKey) != ""
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

func (c *Config) BodyLimitBytes() int {
	if c.BodyLimitMB <= 0 {
		return 50 * 1024 * 1024
	}
	return c.BodyLimitMB * 1024 * 1024
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "development")
}
