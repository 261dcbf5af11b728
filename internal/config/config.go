package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blackmichael/sentiment-collector/internal/domain"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all configuration for the application.
type Config struct {
	// DatabaseDriver selects the store: "postgres" or "sqlite".
	DatabaseDriver string `env:"DATABASE_DRIVER" default:"sqlite"`

	// DatabaseURL is the connection string for the selected driver.
	DatabaseURL string `env:"DATABASE_URL" default:"file:collector.db"`

	// BlueskyServiceURL is the host serving app.bsky.feed.searchPosts.
	BlueskyServiceURL string `env:"BLUESKY_SERVICE_URL" default:"https://bsky.social"`

	// BlueskyHandle and BlueskyAppPassword enable login before searching.
	// Both or neither must be set.
	BlueskyHandle      string `env:"BLUESKY_HANDLE"`
	BlueskyAppPassword string `env:"BLUESKY_APP_PASSWORD"`

	SearchPageSize          int     `env:"SEARCH_PAGE_SIZE" default:"100"`
	SearchRequestsPerSecond float64 `env:"SEARCH_REQUESTS_PER_SECOND" default:"3"`

	// CollectInterval is the pause between collection cycles.
	CollectInterval time.Duration `env:"COLLECT_INTERVAL" default:"30m"`

	// StatusPort is the status server port. Zero disables the server.
	StatusPort int `env:"STATUS_PORT" default:"0"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// DotEnvLoaded reports whether a .env file was read.
	DotEnvLoaded bool
}

// Load reads an optional .env file and then the environment. Every failure
// wraps domain.ErrConfiguration.
func Load() (*Config, error) {
	dotEnv := godotenv.Load() == nil

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("%w: load environment: %w", domain.ErrConfiguration, err)
	}
	cfg.DotEnvLoaded = dotEnv

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if (cfg.BlueskyHandle == "") != (cfg.BlueskyAppPassword == "") {
		return errors.New("BLUESKY_HANDLE and BLUESKY_APP_PASSWORD must be set together")
	}
	if cfg.SearchPageSize < 1 || cfg.SearchPageSize > 100 {
		return fmt.Errorf("SEARCH_PAGE_SIZE must be between 1 and 100, got %d", cfg.SearchPageSize)
	}
	if cfg.SearchRequestsPerSecond < 0 {
		return errors.New("SEARCH_REQUESTS_PER_SECOND must not be negative")
	}
	if cfg.CollectInterval <= 0 {
		return fmt.Errorf("COLLECT_INTERVAL must be positive, got %s", cfg.CollectInterval)
	}
	if cfg.StatusPort < 0 || cfg.StatusPort > 65535 {
		return fmt.Errorf("STATUS_PORT out of range: %d", cfg.StatusPort)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
