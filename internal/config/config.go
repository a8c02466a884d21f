// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds evidence server configuration.
type Config struct {
	// Server
	ListenAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Evidence
	EvidenceRoot string

	// Auth. Empty disables authentication.
	APIKey string

	// Graceful shutdown grace period.
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":8080"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		EvidenceRoot:    envOr("EVIDENCE_ROOT", "./evidence"),
		APIKey:          envOr("API_KEY", ""),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	info, err := os.Stat(cfg.EvidenceRoot)
	if err != nil {
		return nil, fmt.Errorf("stat evidence root %s: %w", cfg.EvidenceRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("evidence root %s is not a directory", cfg.EvidenceRoot)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
