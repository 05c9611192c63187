// Package config provides centralized configuration management for the pipeline.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Publish targets.
const (
	TargetFile     = "file"
	TargetPostgres = "postgres"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	BEA       BEAConfig
	Storage   StorageConfig
	Transform TransformConfig
	Publish   PublishConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Schedule  ScheduleConfig
	Logging   LoggingConfig
}

// BEAConfig holds BEA API client settings.
type BEAConfig struct {
	// APIKey is the BEA UserID. Only the ingest phase needs it.
	APIKey string `env:"BEA_API_KEY"`

	// BaseURL is the API endpoint (default: https://apps.bea.gov/api/data)
	BaseURL string `env:"BEA_BASE_URL" default:"https://apps.bea.gov/api/data"`

	// RequestInterval is the minimum gap between API calls (default: 2s)
	RequestInterval time.Duration `env:"BEA_REQUEST_INTERVAL" default:"2s"`

	// Timeout bounds a single HTTP request (default: 120s)
	Timeout time.Duration `env:"BEA_TIMEOUT" default:"120s"`

	// CacheTTL is how long parameter-value lookups are cached (default: 1h)
	CacheTTL time.Duration `env:"BEA_CACHE_TTL" default:"1h"`

	// Year is the GetData Year parameter; X means all years (default: X)
	Year string `env:"BEA_YEAR" default:"X"`
}

// StorageConfig holds raw store locations.
type StorageConfig struct {
	// RawDir holds the catalog and one JSON document per table (default: data/raw)
	RawDir string `env:"RAW_DIR" default:"data/raw"`

	// StateFile records which tables have been ingested (default: data/state/nipa_data.json)
	StateFile string `env:"STATE_FILE" default:"data/state/nipa_data.json"`
}

// TransformConfig holds transform engine settings.
type TransformConfig struct {
	// Prefix starts every dataset id (default: bea)
	Prefix string `env:"DATASET_PREFIX" default:"bea"`

	// CutoffYear drops tables with no observation from this year on; 0 disables (default: 2024)
	CutoffYear int `env:"CUTOFF_YEAR" default:"2024"`

	// Workers is the number of tables transformed concurrently (default: 1)
	Workers int `env:"TRANSFORM_WORKERS" default:"1"`
}

// PublishConfig selects where datasets go.
type PublishConfig struct {
	// Target is "file" or "postgres" (default: file)
	Target string `env:"PUBLISH_TARGET" default:"file"`

	// Dir is the output directory for the file target (default: data/datasets)
	Dir string `env:"PUBLISH_DIR" default:"data/datasets"`
}

// DatabaseConfig holds database connection settings for the postgres target.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string, required for the postgres target.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// RateLimitConfig holds HTTP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the limit per client IP (default: 60)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"60"`
}

// SecurityConfig holds API key settings for mutating endpoints.
type SecurityConfig struct {
	// RequireAPIKey guards POST /api/runs with an X-API-Key header (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP/X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// ScheduleConfig holds the periodic run settings for the serve command.
type ScheduleConfig struct {
	// Interval between scheduled runs; 0 disables scheduling (default: 0s)
	Interval time.Duration `env:"SCHEDULE_INTERVAL" default:"0s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
