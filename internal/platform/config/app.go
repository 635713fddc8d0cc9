package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig configures the HTTP listener and request-level middleware.
type ServerConfig struct {
	Port               string
	AuthMode           string // jwt | dev
	CORSAllowedOrigins []string

	// Login/register rate limit per client IP.
	RateLimitRPS   float64
	RateLimitBurst int

	ShutdownTimeout time.Duration
}

func LoadServerConfigFromEnv() (ServerConfig, error) {
	cfg := ServerConfig{
		Port:            getenv("PORT", "8080"),
		AuthMode:        getenv("AUTH_MODE", "jwt"),
		RateLimitRPS:    5,
		RateLimitBurst:  10,
		ShutdownTimeout: 10 * time.Second,
	}
	switch cfg.AuthMode {
	case "jwt", "dev":
	default:
		return ServerConfig{}, fmt.Errorf("AUTH_MODE must be jwt or dev, got %q", cfg.AuthMode)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return ServerConfig{}, fmt.Errorf("RATE_LIMIT_RPS must be a positive number, got %q", v)
		}
		cfg.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return ServerConfig{}, fmt.Errorf("RATE_LIMIT_BURST must be a positive integer, got %q", v)
		}
		cfg.RateLimitBurst = n
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be a duration (e.g. 10s): %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	return cfg, nil
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend     string // memory | postgres
	DatabaseURL string
	MaxConns    int32
	// AutoMigrate applies embedded migrations at startup (postgres only).
	AutoMigrate bool
}

func LoadStorageConfigFromEnv() (StorageConfig, error) {
	cfg := StorageConfig{
		Backend:     getenv("STORAGE_BACKEND", "memory"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		AutoMigrate: getenv("DB_AUTO_MIGRATE", "true") == "true",
	}
	switch cfg.Backend {
	case "memory":
	case "postgres":
		if cfg.DatabaseURL == "" {
			return StorageConfig{}, fmt.Errorf("missing required env var: DATABASE_URL")
		}
	default:
		return StorageConfig{}, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.Backend)
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n <= 0 {
			return StorageConfig{}, fmt.Errorf("DB_MAX_CONNS must be a positive integer, got %q", v)
		}
		cfg.MaxConns = int32(n)
	}
	return cfg, nil
}

// ObjectStoreConfig configures where uploaded documents are kept.
type ObjectStoreConfig struct {
	Backend         string // memory | s3
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

func LoadObjectStoreConfigFromEnv() (ObjectStoreConfig, error) {
	cfg := ObjectStoreConfig{
		Backend:         getenv("OBJECT_STORE", "memory"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		Region:          getenv("S3_REGION", "us-east-1"),
		Bucket:          getenv("S3_BUCKET", "omnibus-documents"),
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		PresignTTL:      15 * time.Minute,
	}
	switch cfg.Backend {
	case "memory":
	case "s3":
		if cfg.Endpoint == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return ObjectStoreConfig{}, fmt.Errorf("missing required env vars: S3_ENDPOINT, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY")
		}
	default:
		return ObjectStoreConfig{}, fmt.Errorf("OBJECT_STORE must be memory or s3, got %q", cfg.Backend)
	}
	if v := os.Getenv("S3_PRESIGN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return ObjectStoreConfig{}, fmt.Errorf("S3_PRESIGN_TTL must be a duration (e.g. 15m): %w", err)
		}
		cfg.PresignTTL = d
	}
	return cfg, nil
}

// EventsConfig selects the transport for domain events.
type EventsConfig struct {
	Backend   string // memory | redis
	RedisAddr string
	RedisDB   int
	// ConsumerGroup is the redis stream consumer group used by the audit consumer.
	ConsumerGroup string
}

func LoadEventsConfigFromEnv() (EventsConfig, error) {
	cfg := EventsConfig{
		Backend:       getenv("EVENTS_BACKEND", "memory"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		ConsumerGroup: getenv("EVENTS_CONSUMER_GROUP", "omnibus-api"),
	}
	switch cfg.Backend {
	case "memory", "redis":
	default:
		return EventsConfig{}, fmt.Errorf("EVENTS_BACKEND must be memory or redis, got %q", cfg.Backend)
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return EventsConfig{}, fmt.Errorf("REDIS_DB must be a non-negative integer, got %q", v)
		}
		cfg.RedisDB = n
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
