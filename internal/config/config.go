// Package config loads the server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Cache drivers
const (
	CacheDriverPostgres = "postgres"
	CacheDriverSQLite   = "sqlite"
	CacheDriverNone     = "none"
)

// Config validation errors
var (
	// ErrInvalidPort is returned when Port is empty or not a number
	ErrInvalidPort = errors.New("Port must be a valid port number")
	// ErrInvalidCacheDriver is returned for an unknown CacheDriver
	ErrInvalidCacheDriver = errors.New("CacheDriver must be one of postgres, sqlite, none")
	// ErrMissingDatabaseURL is returned when the postgres driver has no DatabaseURL
	ErrMissingDatabaseURL = errors.New("DatabaseURL is required for the postgres cache driver")
	// ErrMissingSQLitePath is returned when the sqlite driver has no SQLitePath
	ErrMissingSQLitePath = errors.New("SQLitePath is required for the sqlite cache driver")
	// ErrInvalidFetchTimeout is returned when FetchTimeout is not positive
	ErrInvalidFetchTimeout = errors.New("FetchTimeout must be positive")
	// ErrInvalidMaxBodySize is returned when FetchMaxBodyMB is not positive
	ErrInvalidMaxBodySize = errors.New("FetchMaxBodyMB must be positive")
	// ErrInvalidRateLimit is returned when the rate limit is negative or has no window
	ErrInvalidRateLimit = errors.New("RateLimitRequests cannot be negative and RateLimitWindow must be positive")
)

// Config holds the server configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// ServerURL is the public base URL of this server, used to build the
	// placeholder image URL. Defaults to http://localhost:<Port>.
	ServerURL string

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// CacheDriver selects the cache backend: postgres, sqlite or none.
	CacheDriver string

	// SQLitePath is the database file used by the sqlite cache driver.
	SQLitePath string

	// CacheMemoryEntries is the size of the in-process LRU tier. 0 disables it.
	CacheMemoryEntries int

	// CacheWriteTimeout bounds each background cache write.
	CacheWriteTimeout time.Duration

	FetchTimeout   time.Duration
	FetchMaxBodyMB int
	UserAgent      string

	// FetchAllowPrivateNetworks lets the fetcher reach loopback and private
	// addresses. Development only.
	FetchAllowPrivateNetworks bool

	// RateLimitRequests per RateLimitWindow per client IP. 0 disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// StaticDir is served at the root of the server.
	StaticDir string

	MetricsEnabled bool

	// MCPHTTPEnabled mounts the MCP tools at /mcp on the HTTP server.
	MCPHTTPEnabled bool

	// LogLevel is a zap level name. "debug" also switches to development logging.
	LogLevel string

	// RunMigrations applies pending migrations when the server starts.
	RunMigrations bool
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%w: got %q", ErrInvalidPort, c.Port)
	}

	switch c.CacheDriver {
	case CacheDriverPostgres:
		if c.DatabaseURL == "" {
			return ErrMissingDatabaseURL
		}
	case CacheDriverSQLite:
		if c.SQLitePath == "" {
			return ErrMissingSQLitePath
		}
	case CacheDriverNone:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidCacheDriver, c.CacheDriver)
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidFetchTimeout, c.FetchTimeout)
	}
	if c.FetchMaxBodyMB <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxBodySize, c.FetchMaxBodyMB)
	}
	if c.RateLimitRequests < 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("%w: got %d per %v", ErrInvalidRateLimit, c.RateLimitRequests, c.RateLimitWindow)
	}

	return nil
}

// SetPort changes the listen port. A ServerURL still derived from the old
// port follows the new one; an explicitly configured ServerURL is kept.
func (c *Config) SetPort(port string) {
	if c.ServerURL == "http://localhost:"+c.Port {
		c.ServerURL = "http://localhost:" + port
	}
	c.Port = port
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Port:               "8080",
		ServerURL:          "http://localhost:8080",
		CacheDriver:        CacheDriverNone,
		SQLitePath:         "metafetch.db",
		CacheMemoryEntries: 1024,
		CacheWriteTimeout:  5 * time.Second,
		FetchTimeout:       10 * time.Second,
		FetchMaxBodyMB:     5,
		UserAgent:          "MetafetchBot/1.0",
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
		StaticDir:          "public",
		MetricsEnabled:     true,
		LogLevel:           "info",
		RunMigrations:      true,
	}
}

// LoadDotEnv loads a .env file from the working directory if one exists.
// Variables already present in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables.
// Uses defaults for any missing environment variables; invalid numeric values
// are logged and replaced by their default.
//
// Environment variables:
//   - PORT: listen port (default: 8080)
//   - SERVER_URL: public base URL (default: http://localhost:<PORT>)
//   - DATABASE_URL: PostgreSQL DSN (default: "")
//   - CACHE_DRIVER: postgres, sqlite or none (default: postgres when DATABASE_URL is set, else none)
//   - SQLITE_PATH: sqlite database file (default: metafetch.db)
//   - CACHE_MEMORY_ENTRIES: in-memory LRU size, 0 to disable (default: 1024)
//   - CACHE_WRITE_TIMEOUT_SECONDS: background cache write timeout (default: 5)
//   - FETCH_TIMEOUT_SECONDS: page fetch timeout (default: 10)
//   - FETCH_MAX_BODY_MB: page size limit (default: 5)
//   - USER_AGENT: outbound User-Agent (default: MetafetchBot/1.0)
//   - FETCH_ALLOW_PRIVATE_NETWORKS: "true"/"1" to fetch private addresses (default: false)
//   - RATE_LIMIT_REQUESTS: requests per window per IP, 0 to disable (default: 100)
//   - RATE_LIMIT_WINDOW_SECONDS: rate limit window (default: 60)
//   - STATIC_DIR: static file root (default: public)
//   - METRICS_ENABLED: "true"/"1" to expose /metrics (default: true)
//   - MCP_HTTP_ENABLED: "true"/"1" to serve MCP tools at /mcp (default: false)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - RUN_MIGRATIONS: "true"/"1" to migrate on start (default: true)
func ConfigFromEnv(logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultConfig()

	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	cfg.ServerURL = "http://localhost:" + cfg.Port
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = strings.TrimRight(v, "/")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL != "" {
		cfg.CacheDriver = CacheDriverPostgres
	}
	if v := os.Getenv("CACHE_DRIVER"); v != "" {
		cfg.CacheDriver = strings.ToLower(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}

	cfg.CacheMemoryEntries = intFromEnv(logger, "CACHE_MEMORY_ENTRIES", cfg.CacheMemoryEntries, 0)
	cfg.CacheWriteTimeout = secondsFromEnv(logger, "CACHE_WRITE_TIMEOUT_SECONDS", cfg.CacheWriteTimeout)
	cfg.FetchTimeout = secondsFromEnv(logger, "FETCH_TIMEOUT_SECONDS", cfg.FetchTimeout)
	cfg.FetchMaxBodyMB = intFromEnv(logger, "FETCH_MAX_BODY_MB", cfg.FetchMaxBodyMB, 1)

	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("FETCH_ALLOW_PRIVATE_NETWORKS"); v != "" {
		cfg.FetchAllowPrivateNetworks = v == "true" || v == "1"
	}

	cfg.RateLimitRequests = intFromEnv(logger, "RATE_LIMIT_REQUESTS", cfg.RateLimitRequests, 0)
	cfg.RateLimitWindow = secondsFromEnv(logger, "RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimitWindow)

	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.MetricsEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("MCP_HTTP_ENABLED"); v != "" {
		cfg.MCPHTTPEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("RUN_MIGRATIONS"); v != "" {
		cfg.RunMigrations = v == "true" || v == "1"
	}

	return cfg
}

func intFromEnv(logger *zap.Logger, key string, def, min int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		logger.Warn("[CONFIG] invalid value, using default",
			zap.String("key", key),
			zap.String("value", v),
			zap.Int("default", def),
			zap.Error(err),
		)
		return def
	}
	return n
}

func secondsFromEnv(logger *zap.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Warn("[CONFIG] invalid value, using default",
			zap.String("key", key),
			zap.String("value", v),
			zap.Int("default_seconds", int(def.Seconds())),
			zap.Error(err),
		)
		return def
	}
	return time.Duration(n) * time.Second
}
