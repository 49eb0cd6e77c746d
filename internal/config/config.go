package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for bpimanager.
type Config struct {
	Port string `yaml:"port"`

	DBDriver   string `yaml:"db_driver"`  // memory | sqlite | postgres
	DBDSN      string `yaml:"db_dsn"`
	Migrations string `yaml:"migrations"` // auto | goose | none

	// SeedPath points at a wire-format JSON file used as the last fallback.
	// Empty means the dataset embedded in the binary.
	SeedPath string `yaml:"seed_path"`

	// FeedURL enables the scheduled pull when non-empty.
	FeedURL         string        `yaml:"feed_url"`
	RefreshSchedule string        `yaml:"refresh_schedule"`
	FeedTimeout     time.Duration `yaml:"feed_timeout"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	AuthEnabled bool `yaml:"auth_enabled"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	AlertWebhookURL  string `yaml:"alert_webhook_url"`
	AlertWebhookType string `yaml:"alert_webhook_type"`
	AlertMinFailures int    `yaml:"alert_min_failures"`

	// DefaultNames overrides the localized names given to newly seen codes.
	DefaultNames map[string]string `yaml:"default_names"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:             "8000",
		DBDriver:         "sqlite",
		DBDSN:            "bpimanager.db?_pragma=foreign_keys(1)",
		Migrations:       "auto",
		RefreshSchedule:  "@every 5m",
		FeedTimeout:      15 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
		RateLimitBurst:   20,
		AlertMinFailures: 1,
	}
}

// Load builds a Config from defaults, then the YAML file at path (if any),
// then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from environment variables, with sane defaults.
func FromEnv() (Config, error) {
	return Load("")
}

// Validate rejects settings that cannot work together.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DBDriver)
	}
	switch c.Migrations {
	case "auto", "goose", "none":
	default:
		return fmt.Errorf("unsupported migrations mode %q", c.Migrations)
	}
	if c.FeedURL != "" && c.RefreshSchedule == "" {
		return fmt.Errorf("refresh schedule is required when a feed url is set")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	str := map[string]*string{
		"BPI_PORT":             &cfg.Port,
		"BPI_DB_DRIVER":        &cfg.DBDriver,
		"BPI_DB_DSN":           &cfg.DBDSN,
		"BPI_MIGRATIONS":       &cfg.Migrations,
		"BPI_SEED_PATH":        &cfg.SeedPath,
		"BPI_FEED_URL":         &cfg.FeedURL,
		"BPI_REFRESH_SCHEDULE": &cfg.RefreshSchedule,
		"BPI_LOG_LEVEL":        &cfg.LogLevel,
		"BPI_LOG_FORMAT":       &cfg.LogFormat,
		"ALERT_WEBHOOK_URL":    &cfg.AlertWebhookURL,
		"ALERT_WEBHOOK_TYPE":   &cfg.AlertWebhookType,
	}
	for key, dst := range str {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("BPI_FEED_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("BPI_FEED_TIMEOUT: %w", err)
		}
		cfg.FeedTimeout = d
	}
	if v := os.Getenv("BPI_AUTH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("BPI_AUTH_ENABLED: %w", err)
		}
		cfg.AuthEnabled = b
	}
	if v := os.Getenv("BPI_RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BPI_RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if v := os.Getenv("BPI_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BPI_RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}
	if v := os.Getenv("ALERT_MIN_FAILURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 {
			cfg.AlertMinFailures = n
		}
	}
	return nil
}
