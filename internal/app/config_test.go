package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "json", cfg.Server.LogFormat)

	require.Equal(t, "sqlite", cfg.Database.Driver)

	require.Equal(t, "tradelink", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)

	require.Equal(t, 64, cfg.Realtime.SendBuffer)
	require.Equal(t, time.Second, cfg.Realtime.Reconnect.BaseDelay)
	require.Equal(t, 5, cfg.Realtime.Reconnect.MaxAttempts)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)

	require.Equal(t, 90, cfg.Maintenance.NotificationRetentionDays)
	require.Equal(t, "@daily", cfg.Maintenance.Schedule)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.True(t, cfg.Database.Postgres.Enabled)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)

	require.Equal(t, 128, cfg.Realtime.SendBuffer)
	require.Equal(t, 2*time.Second, cfg.Realtime.Reconnect.BaseDelay)
	require.Equal(t, 3, cfg.Realtime.Reconnect.MaxAttempts)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("TRADELINK_SERVER_PORT", "9999")
	t.Setenv("TRADELINK_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 9999, cfg.Server.Port)
	// No default exists for the secret; the struct binding must still pick
	// the value up from the environment.
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "  "
	require.Error(t, cfg.Validate())

	cfg.Auth.JWT.Secret = "secret"
	require.NoError(t, cfg.Validate())
}
