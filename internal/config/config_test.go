package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 2*time.Minute, cfg.TrackingCacheTTL)
	require.Equal(t, 30*time.Second, cfg.NotificationKeepAlive)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, 10, cfg.AIRateLimit)
	require.False(t, cfg.SeedEnabled)
	require.False(t, cfg.AIEnabled())
	require.Equal(t, 20, cfg.DatabaseMaxOpenConns)
	require.Equal(t, 5, cfg.DatabaseMaxIdleConns)
	require.Equal(t, 30*time.Minute, cfg.DatabaseConnLifetime)
	require.Equal(t, 500*time.Millisecond, cfg.DatabaseSlowQuery)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_APP_PORT", ":9090")
	t.Setenv("GEMA_TRACKING_CACHE_TTL", "45s")
	t.Setenv("GEMA_OPENAI_API_KEY", "sk-test")
	t.Setenv("GEMA_SEED_ENABLED", "true")
	t.Setenv("GEMA_SEED_TOKEN", "seed")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 45*time.Second, cfg.TrackingCacheTTL)
	require.True(t, cfg.AIEnabled())
	require.True(t, cfg.SeedEnabled)
	require.Equal(t, "seed", cfg.SeedToken)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("GEMA_JWT_SECRET", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("GEMA_JWT_SECRET", "secret")
	t.Setenv("GEMA_TRACKING_CACHE_TTL", "soon")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("GEMA_TRACKING_CACHE_TTL", "1m")
	t.Setenv("GEMA_SEED_ENABLED", "true")
	_, err = Load()
	require.Error(t, err)
}
