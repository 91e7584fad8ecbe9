package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "SERVER_URL", "DATABASE_URL", "CACHE_DRIVER", "LOG_LEVEL", "FETCH_ALLOW_PRIVATE_NETWORKS"} {
		t.Setenv(key, "")
	}

	cfg := ConfigFromEnv(nil)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, CacheDriverNone, cfg.CacheDriver)
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout)
	assert.True(t, cfg.MetricsEnabled)
	assert.False(t, cfg.FetchAllowPrivateNetworks)
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_URL", "https://meta.example/")
	t.Setenv("DATABASE_URL", "postgres://localhost/meta")
	t.Setenv("CACHE_MEMORY_ENTRIES", "0")
	t.Setenv("FETCH_TIMEOUT_SECONDS", "3")
	t.Setenv("RATE_LIMIT_REQUESTS", "10")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("MCP_HTTP_ENABLED", "1")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RUN_MIGRATIONS", "0")
	t.Setenv("FETCH_ALLOW_PRIVATE_NETWORKS", "true")

	cfg := ConfigFromEnv(nil)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://meta.example", cfg.ServerURL)
	assert.Equal(t, CacheDriverPostgres, cfg.CacheDriver, "DATABASE_URL implies the postgres driver")
	assert.Equal(t, 0, cfg.CacheMemoryEntries)
	assert.Equal(t, 3*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 10, cfg.RateLimitRequests)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.False(t, cfg.MetricsEnabled)
	assert.True(t, cfg.MCPHTTPEnabled)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.RunMigrations)
	assert.True(t, cfg.FetchAllowPrivateNetworks)
	require.NoError(t, cfg.Validate())
}

func TestConfigFromEnv_ServerURLFollowsPort(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("SERVER_URL", "")

	assert.Equal(t, "http://localhost:3000", ConfigFromEnv(nil).ServerURL)
}

func TestSetPort_DerivedServerURLFollows(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetPort("9999")

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "http://localhost:9999", cfg.ServerURL)
}

func TestSetPort_ExplicitServerURLKept(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerURL = "https://meta.example"
	cfg.SetPort("9999")

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "https://meta.example", cfg.ServerURL)
}

func TestConfigFromEnv_ExplicitDriverWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/meta")
	t.Setenv("CACHE_DRIVER", "SQLite")

	assert.Equal(t, CacheDriverSQLite, ConfigFromEnv(nil).CacheDriver)
}

func TestConfigFromEnv_InvalidNumbersKeepDefaults(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT_SECONDS", "soon")
	t.Setenv("FETCH_MAX_BODY_MB", "0")
	t.Setenv("CACHE_MEMORY_ENTRIES", "-5")

	core, logs := observer.New(zap.WarnLevel)
	cfg := ConfigFromEnv(zap.New(core))

	defaults := DefaultConfig()
	assert.Equal(t, defaults.FetchTimeout, cfg.FetchTimeout)
	assert.Equal(t, defaults.FetchMaxBodyMB, cfg.FetchMaxBodyMB)
	assert.Equal(t, defaults.CacheMemoryEntries, cfg.CacheMemoryEntries)
	assert.Equal(t, 3, logs.FilterMessage("[CONFIG] invalid value, using default").Len())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{name: "bad port", mutate: func(c *Config) { c.Port = "http" }, wantErr: ErrInvalidPort},
		{name: "port out of range", mutate: func(c *Config) { c.Port = "70000" }, wantErr: ErrInvalidPort},
		{name: "unknown driver", mutate: func(c *Config) { c.CacheDriver = "redis" }, wantErr: ErrInvalidCacheDriver},
		{name: "postgres without url", mutate: func(c *Config) { c.CacheDriver = CacheDriverPostgres }, wantErr: ErrMissingDatabaseURL},
		{name: "sqlite without path", mutate: func(c *Config) {
			c.CacheDriver = CacheDriverSQLite
			c.SQLitePath = ""
		}, wantErr: ErrMissingSQLitePath},
		{name: "zero fetch timeout", mutate: func(c *Config) { c.FetchTimeout = 0 }, wantErr: ErrInvalidFetchTimeout},
		{name: "zero body size", mutate: func(c *Config) { c.FetchMaxBodyMB = 0 }, wantErr: ErrInvalidMaxBodySize},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimitRequests = -1 }, wantErr: ErrInvalidRateLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
		})
	}
}
