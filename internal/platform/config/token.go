package config

import (
	"fmt"
	"os"
	"time"
)

const (
	DefaultTokenIssuer = "omnibus-api"
	DefaultTokenTTL    = 4 * time.Hour
)

// TokenConfig configures issuing and validating HS256 access tokens.
//
// Secret may be empty here: the token service reports a missing secret when it is
// asked to issue, and cmd/api refuses to start in jwt mode without one.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func LoadTokenConfigFromEnv() (TokenConfig, error) {
	cfg := TokenConfig{
		Secret: []byte(os.Getenv("TOKEN_SECRET")),
		Issuer: DefaultTokenIssuer,
		TTL:    DefaultTokenTTL,
	}
	if v := os.Getenv("TOKEN_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return TokenConfig{}, fmt.Errorf("TOKEN_TTL must be a duration (e.g. 4h): %w", err)
		}
		if d <= 0 {
			return TokenConfig{}, fmt.Errorf("TOKEN_TTL must be positive, got %s", d)
		}
		cfg.TTL = d
	}
	return cfg, nil
}
