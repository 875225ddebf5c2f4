package server

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/beanlab/beanboard/pkg/middleware"
	"github.com/beanlab/beanboard/pkg/session"
	"github.com/beanlab/beanboard/pkg/symbol"
)

// Config holds the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Protocol  ProtocolConfig  `yaml:"protocol"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Admin     AdminConfig     `yaml:"admin"`
	Mirror    MirrorConfig    `yaml:"mirror"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and configures the scores backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `yaml:"driver"`

	// DSN is the postgres connection string. Supports ${ENV} expansion.
	DSN string `yaml:"dsn"`

	// Path is the sqlite database file.
	Path string `yaml:"path"`
}

// SessionConfig tunes the in-memory session store.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// ProtocolConfig tunes the assembly guards.
type ProtocolConfig struct {
	// FreshnessWindow bounds commit age relative to the identity
	// handshake. Zero disables the guard.
	FreshnessWindow time.Duration `yaml:"freshness_window"`

	// DecodeMode is "strict" (default) or "lenient".
	DecodeMode string `yaml:"decode_mode"`
}

// RateLimitConfig tunes the per-client token bucket.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// AdminConfig guards the administrative routes.
type AdminConfig struct {
	// KeyHash is a bcrypt hash of the admin API key. Empty disables the
	// admin routes.
	KeyHash string `yaml:"key_hash"`
}

// MirrorConfig configures the optional static leaderboard mirror.
type MirrorConfig struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Limit    int           `yaml:"limit"`
	World    string        `yaml:"world"`
}

// LoadConfig reads and validates a YAML config file. ${ENV} references in
// the file are expanded before parsing so secrets can stay out of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	switch c.Database.Driver {
	case "":
		c.Database.Driver = "sqlite"
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "beanboard.db"
	}

	if c.Session.TTL <= 0 {
		c.Session.TTL = session.DefaultTTL
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = session.DefaultSweepInterval
	}

	switch c.Protocol.DecodeMode {
	case "", "strict", "lenient":
	default:
		return fmt.Errorf("unknown decode mode %q", c.Protocol.DecodeMode)
	}

	return nil
}

// decodeMode maps the configured mode onto the codec's type.
func (c *Config) decodeMode() symbol.Mode {
	if c.Protocol.DecodeMode == "lenient" {
		return symbol.Lenient
	}
	return symbol.Strict
}

// rateLimiter builds the configured per-client limiter.
func (c *Config) rateLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(c.RateLimit.PerSecond, c.RateLimit.Burst)
}
