// Package config loads the service configuration from a YAML file with
// environment variable overrides for deployment secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/casefiles/pkg/db"
	"github.com/dmitrymomot/casefiles/pkg/logger"
	"github.com/dmitrymomot/casefiles/pkg/storage"
)

// ErrInvalidConfig is returned when required settings are missing.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full service configuration.
type Config struct {
	// Addr is the HTTP listen address (default: :8080).
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds graceful shutdown (default: 15s).
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Database db.Config           `yaml:"database"`
	Storage  storage.Config      `yaml:"storage"`
	Sentry   logger.SentryConfig `yaml:"sentry"`

	// RedisURL enables the signed-URL cache when set.
	RedisURL string `yaml:"redis_url"`

	Limits Limits `yaml:"limits"`
}

// Limits mirrors the attachment limits; zero values take the production
// defaults from the attachment package.
type Limits struct {
	MaxPerCase        int           `yaml:"max_per_case"`
	MaxFileBytes      int64         `yaml:"max_file_bytes"`
	AllowedExtensions []string      `yaml:"allowed_extensions"`
	SignedURLTTL      time.Duration `yaml:"signed_url_ttl"`
}

// Load reads the YAML file at path (skipped when path is empty), then applies
// environment overrides and defaults. Secrets are expected from the
// environment in deployment; the file carries the rest.
func Load(path string) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Database.URL == "" || cfg.Storage.Bucket == "" {
		return Config{}, ErrInvalidConfig
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrideString(&c.Addr, "ADDR")
	overrideString(&c.Database.URL, "DATABASE_URL")
	overrideString(&c.Storage.Bucket, "STORAGE_BUCKET")
	overrideString(&c.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	overrideString(&c.Storage.SecretKey, "STORAGE_SECRET_KEY")
	overrideString(&c.Storage.Endpoint, "STORAGE_ENDPOINT")
	overrideString(&c.Storage.Region, "STORAGE_REGION")
	overrideString(&c.RedisURL, "REDIS_URL")
	overrideString(&c.Sentry.DSN, "SENTRY_DSN")
	overrideString(&c.Sentry.Environment, "SENTRY_ENVIRONMENT")
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 15 * time.Second
	}
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
