package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTokenConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	t.Setenv("TOKEN_ISSUER", "")
	t.Setenv("TOKEN_TTL", "")

	cfg, err := LoadTokenConfigFromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.Secret)
	assert.Equal(t, "omnibus-api", cfg.Issuer)
	assert.Equal(t, 4*time.Hour, cfg.TTL)
}

func TestLoadTokenConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "s3cret")
	t.Setenv("TOKEN_ISSUER", "other")
	t.Setenv("TOKEN_TTL", "30m")

	cfg, err := LoadTokenConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), cfg.Secret)
	assert.Equal(t, "other", cfg.Issuer)
	assert.Equal(t, 30*time.Minute, cfg.TTL)
}

func TestLoadTokenConfigFromEnv_BadTTL(t *testing.T) {
	for _, v := range []string{"four hours", "-1h", "0s"} {
		t.Setenv("TOKEN_TTL", v)
		_, err := LoadTokenConfigFromEnv()
		assert.Error(t, err, "TOKEN_TTL=%q", v)
	}
}

func TestLoadStorageConfigFromEnv(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := LoadStorageConfigFromEnv()
	require.Error(t, err)

	t.Setenv("DATABASE_URL", "postgres://localhost/omnibus")
	t.Setenv("DB_MAX_CONNS", "8")
	cfg, err := LoadStorageConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.MaxConns)

	t.Setenv("STORAGE_BACKEND", "sqlite")
	_, err = LoadStorageConfigFromEnv()
	require.Error(t, err)
}

func TestLoadServerConfigFromEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("RATE_LIMIT_BURST", "3")

	cfg, err := LoadServerConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "jwt", cfg.AuthMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 3, cfg.RateLimitBurst)

	t.Setenv("AUTH_MODE", "none")
	_, err = LoadServerConfigFromEnv()
	require.Error(t, err)
}

func TestLoadObjectStoreConfigFromEnv_S3RequiresCredentials(t *testing.T) {
	t.Setenv("OBJECT_STORE", "s3")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("S3_ACCESS_KEY_ID", "")
	t.Setenv("S3_SECRET_ACCESS_KEY", "")
	_, err := LoadObjectStoreConfigFromEnv()
	require.Error(t, err)

	t.Setenv("S3_ACCESS_KEY_ID", "minio")
	t.Setenv("S3_SECRET_ACCESS_KEY", "minio123")
	cfg, err := LoadObjectStoreConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "omnibus-documents", cfg.Bucket)
}

func TestLoadSentryConfigFromEnv(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("SENTRY_ENVIRONMENT", "")
	t.Setenv("SENTRY_SAMPLE_RATE", "")
	t.Setenv("SENTRY_FLUSH_TIMEOUT", "")

	cfg, err := LoadSentryConfigFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.Enabled())
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 1.0, cfg.SampleRate)

	t.Setenv("SENTRY_DSN", "https://public@sentry.example.com/1")
	t.Setenv("SENTRY_SAMPLE_RATE", "0.25")
	cfg, err = LoadSentryConfigFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Enabled())
	assert.Equal(t, 0.25, cfg.SampleRate)

	for _, v := range []string{"0", "1.5", "half"} {
		t.Setenv("SENTRY_SAMPLE_RATE", v)
		_, err := LoadSentryConfigFromEnv()
		assert.Error(t, err, "SENTRY_SAMPLE_RATE=%q", v)
	}
}
