package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/opsdeck.sqlite", cfg.Database.Path)

	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "127.0.0.1:6379", cfg.Cache.Redis.Address)
	require.Equal(t, 5*time.Second, cfg.Cache.Redis.Timeout)

	require.Equal(t, "opsdeck", cfg.Auth.JWT.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Auth.JWT.TTL)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, "@hourly", cfg.Maintenance.CacheSchedule)
	require.Equal(t, "@daily", cfg.Maintenance.InvitationSchedule)
}

func TestLoadConfigReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
server:
  port: 9090
  log_level: debug
database:
  driver: postgres
  postgres:
    host: db.internal
    port: 5433
    database: opsdeck
    username: deck
    password: secret
cache:
  redis:
    enabled: true
    address: redis.internal:6379
    timeout: 2s
auth:
  jwt:
    secret: test-secret
    access_token_ttl: 30m
maintenance:
  enabled: false
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.internal", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)
	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 2*time.Second, cfg.Cache.Redis.Timeout)
	require.Equal(t, "test-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.False(t, cfg.Maintenance.Enabled)
}

func TestLoadConfigHonoursEnvironment(t *testing.T) {
	t.Setenv("OPSDECK_SERVER_PORT", "7070")
	t.Setenv("OPSDECK_AUTH_JWT_SECRET", "env-secret")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "env-secret", cfg.Auth.JWT.Secret)
}

func TestRedisClientConfigTrimsFields(t *testing.T) {
	cacheCfg := CacheConfig{Redis: RedisCacheConfig{
		Address:  "  redis.internal:6379  ",
		Username: " deck ",
		Password: "secret",
		DB:       3,
		TLS:      true,
		Timeout:  time.Second,
	}}

	converted := cacheCfg.RedisClientConfig()
	require.Equal(t, "redis.internal:6379", converted.Address)
	require.Equal(t, "deck", converted.Username)
	require.Equal(t, "secret", converted.Password)
	require.Equal(t, 3, converted.DB)
	require.True(t, converted.TLS)
	require.Equal(t, time.Second, converted.Timeout)
}
