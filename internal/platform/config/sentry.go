package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// SentryConfig configures error reporting. An empty DSN disables it.
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
	// FlushTimeout bounds how long shutdown waits for queued events.
	FlushTimeout time.Duration
}

func (c SentryConfig) Enabled() bool { return c.DSN != "" }

func LoadSentryConfigFromEnv() (SentryConfig, error) {
	cfg := SentryConfig{
		DSN:          os.Getenv("SENTRY_DSN"),
		Environment:  getenv("SENTRY_ENVIRONMENT", "development"),
		Release:      os.Getenv("SENTRY_RELEASE"),
		SampleRate:   1.0,
		FlushTimeout: 2 * time.Second,
	}
	if v := os.Getenv("SENTRY_SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return SentryConfig{}, fmt.Errorf("SENTRY_SAMPLE_RATE must be in (0, 1], got %q", v)
		}
		cfg.SampleRate = f
	}
	if v := os.Getenv("SENTRY_FLUSH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return SentryConfig{}, fmt.Errorf("SENTRY_FLUSH_TIMEOUT must be a duration (e.g. 2s): %w", err)
		}
		cfg.FlushTimeout = d
	}
	return cfg, nil
}
