package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/sustainhub/sustainability-hub/internal/lifecycle"
	"github.com/sustainhub/sustainability-hub/internal/platform/cache"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`
	AppRateLimit      int           `envconfig:"APP_RATE_LIMIT" default:"120"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SessionSecret string        `envconfig:"SESSION_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	CSRFSecret string `envconfig:"CSRF_SECRET" required:"true"`

	BackendURL     string        `envconfig:"BACKEND_URL" default:"http://127.0.0.1:3000"`
	BackendTimeout time.Duration `envconfig:"BACKEND_TIMEOUT" default:"10s"`

	FetchStalePolicy  string        `envconfig:"FETCH_STALE_POLICY" default:"latest-issued"`
	ComponentIdleTTL  time.Duration `envconfig:"COMPONENT_IDLE_TTL" default:"30m"`
	WorkerConcurrency int           `envconfig:"WORKER_CONCURRENCY" default:"5"`
	WorkerMetricsAddr string        `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
}

// LoadConfig reads configuration from a .env file, when present, and the environment.
// Variables already set in the environment win over the file.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Default().Warn("load .env", slog.Any("error", err))
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("session secret must be provided")
	}
	if cfg.CSRFSecret == "" {
		return nil, errors.New("csrf secret must be provided")
	}
	if _, err := cfg.StalePolicy(); err != nil {
		return nil, err
	}
	if cfg.BackendURL == "" {
		return nil, errors.New("backend url must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// StalePolicy parses FETCH_STALE_POLICY.
func (c *Config) StalePolicy() (lifecycle.Policy, error) {
	policy, err := lifecycle.ParsePolicy(c.FetchStalePolicy)
	if err != nil {
		return policy, fmt.Errorf("FETCH_STALE_POLICY: %w", err)
	}
	return policy, nil
}

// ComponentOptions returns the lifecycle options shared by every component registry.
func (c *Config) ComponentOptions(logger *slog.Logger) lifecycle.Options {
	policy, _ := c.StalePolicy()
	return lifecycle.Options{Policy: policy, Logger: logger}
}

// Redis returns the connection options shared by sessions and the job queue.
func (c *Config) Redis() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
