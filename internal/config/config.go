package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration.
type Config struct {
	Environment  string
	DatabaseURL  string
	ListenAddr   string
	RedisAddr    string
	MaxBodyBytes int64
}

const (
	defaultListenAddr   = ":8080"
	defaultMaxBodyBytes = 1 << 20
)

// Load loads configuration from environment variables. DATABASE_URL selects
// the backing store: a postgres:// URL, the literal "memory", or a SQLite
// file path.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:  os.Getenv("APP_ENV"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		ListenAddr:   os.Getenv("API_ADDR"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		MaxBodyBytes: defaultMaxBodyBytes,
	}

	if v := os.Getenv("API_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("API_MAX_BODY_BYTES must be a positive integer, got %q", v)
		}
		cfg.MaxBodyBytes = n
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var missing []string

	if c.Environment == "" {
		missing = append(missing, "APP_ENV")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}

	// The in-memory store loses all state on restart; refuse it outside
	// development.
	if (c.Environment == "production" || c.Environment == "staging") && c.UseMemory() {
		return errors.New("DATABASE_URL=memory is not allowed in " + c.Environment)
	}

	return nil
}

// UsePostgres reports whether DATABASE_URL points at PostgreSQL.
func (c *Config) UsePostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// UseMemory reports whether the in-memory store was requested.
func (c *Config) UseMemory() bool {
	return c.DatabaseURL == "memory"
}
