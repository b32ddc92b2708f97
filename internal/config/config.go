// Package config provides centralized configuration management for the
// server and the CLI. It loads configuration from environment variables with
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Split    SplitConfig
	Excel    ExcelConfig
	History  HistoryConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 10m).
	// A split answers only when it has finished, so this bounds the longest split.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"10m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the optional run history database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Empty keeps run history in memory.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SplitConfig holds the splitter settings.
type SplitConfig struct {
	// ParallelSizeThreshold selects parallel mode for larger files (default: 100MiB)
	ParallelSizeThreshold int64 `env:"SPLIT_PARALLEL_SIZE_THRESHOLD" default:"104857600"`

	// ParallelRowThreshold selects parallel mode for files with more lines (default: 500000)
	ParallelRowThreshold int `env:"SPLIT_PARALLEL_ROW_THRESHOLD" default:"500000"`

	// MaxWorkers bounds active shard writers in parallel mode (default: 2)
	MaxWorkers int `env:"SPLIT_MAX_WORKERS" default:"2"`

	// ChunkLayout is fill or balanced (default: fill)
	ChunkLayout string `env:"SPLIT_CHUNK_LAYOUT" default:"fill"`

	// MaxConcurrentRequests bounds splits running at once (default: 2)
	MaxConcurrentRequests int `env:"SPLIT_MAX_CONCURRENT_REQUESTS" default:"2"`

	// MaxWaitTime is how long a request waits for a split slot (default: 30s)
	MaxWaitTime time.Duration `env:"SPLIT_MAX_WAIT_TIME" default:"30s"`

	// LockTimeout is how long to wait for a busy output directory (default: 5s)
	LockTimeout time.Duration `env:"SPLIT_LOCK_TIMEOUT" default:"5s"`

	// WriteBuffer is the per-shard write buffer in bytes (default: 256KiB)
	WriteBuffer int `env:"SPLIT_WRITE_BUFFER" default:"262144"`
}

// ExcelConfig holds the spreadsheet converter settings.
type ExcelConfig struct {
	// MaxColumns is the number of columns kept per row (default: 100)
	MaxColumns int `env:"EXCEL_MAX_COLUMNS" default:"100"`

	// MaxCellRunes truncates longer cells (default: 500)
	MaxCellRunes int `env:"EXCEL_MAX_CELL_RUNES" default:"500"`

	// RowHeightInterval sets an explicit height on every Nth row (default: 5000)
	RowHeightInterval int `env:"EXCEL_ROW_HEIGHT_INTERVAL" default:"5000"`

	// RowHeight is that explicit height in points (default: 15)
	RowHeight float64 `env:"EXCEL_ROW_HEIGHT" default:"15"`

	// ColumnWidth is applied to every written column (default: 12)
	ColumnWidth float64 `env:"EXCEL_COLUMN_WIDTH" default:"12"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	// Capacity is the number of runs kept by the in-memory store (default: 500)
	Capacity int `env:"HISTORY_CAPACITY" default:"500"`
}

// SecurityConfig holds HTTP security settings. The API reads and writes
// server-side paths, so deployments outside localhost should require a key.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
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
