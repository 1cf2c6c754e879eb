// Package config provides environment-driven configuration for chatvault.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL           Secret
	Port                  string
	ListenHost            string
	CORSOrigins           []string
	LogLevel              string
	SiteDir               string
	BackupDir             string
	IngestWorkers         int
	IncludeSystemMessages bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:           Secret(envOrDefault("DATABASE_URL", "")),
		Port:                  envOrDefault("PORT", "3040"),
		ListenHost:            envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:              envOrDefault("LOG_LEVEL", "info"),
		SiteDir:               envOrDefault("SITE_DIR", "./site"),
		BackupDir:             envOrDefault("BACKUP_DIR", "./backups"),
		IncludeSystemMessages: envOrDefault("INCLUDE_SYSTEM_MESSAGES", "false") == "true",
	}

	ingestWorkers, err := strconv.Atoi(envOrDefault("INGEST_WORKERS", "1"))
	if err != nil || ingestWorkers < 1 || ingestWorkers > 16 {
		return nil, fmt.Errorf("INGEST_WORKERS must be an integer between 1 and 16")
	}
	cfg.IngestWorkers = ingestWorkers

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
