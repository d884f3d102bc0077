package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 3*time.Second, cfg.CleanupGrace)
	assert.Equal(t, time.Hour, cfg.PendingQueryTTL)
	assert.False(t, cfg.DataStoreForwardDelete)
	assert.Equal(t, 30*time.Second, cfg.Upstream.Timeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Temporal.Enabled())
	assert.False(t, cfg.Otel.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("PORT", "9090")
	t.Setenv("CALC_CLEANUP_GRACE", "250ms")
	t.Setenv("DATASTORE_FORWARD_DELETE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, 250*time.Millisecond, cfg.CleanupGrace)
	assert.True(t, cfg.DataStoreForwardDelete)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsNegativeGrace(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	t.Setenv("CALC_CLEANUP_GRACE", "-1s")
	_, err := LoadConfig()
	require.Error(t, err)
}
