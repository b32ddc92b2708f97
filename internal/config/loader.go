package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var (
	durationType    = reflect.TypeOf(time.Duration(0))
	stringSliceType = reflect.TypeOf([]string(nil))
)

// Load reads configuration from environment variables, falls back to the
// `default` tag for unset ones and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct fills the fields of v from their `env` tags, recursing into the
// section structs.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field, fieldVal := t.Field(i), v.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		name := field.Tag.Get("env")
		value := lookupEnv(name, field.Tag.Get("envAlt"), field.Tag.Get("default"))
		if value == "" {
			continue
		}
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
		}
	}

	return nil
}

// lookupEnv returns the value of name, else of alt, else def.
func lookupEnv(name, alt, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	if alt != "" {
		if v := os.Getenv(alt); v != "" {
			return v
		}
	}
	return def
}

// setField parses value into field. Durations use time.ParseDuration and
// string slices are comma separated with blanks dropped.
func setField(field reflect.Value, value string) error {
	switch field.Type() {
	case durationType:
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil

	case stringSliceType:
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation (only when a database is configured)
	if c.Database.URL != "" {
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Split validation
	if c.Split.ParallelSizeThreshold <= 0 {
		errs = append(errs, "SPLIT_PARALLEL_SIZE_THRESHOLD must be positive")
	}
	if c.Split.ParallelRowThreshold <= 0 {
		errs = append(errs, "SPLIT_PARALLEL_ROW_THRESHOLD must be positive")
	}
	if c.Split.MaxWorkers <= 0 {
		errs = append(errs, "SPLIT_MAX_WORKERS must be positive")
	}
	validLayouts := map[string]bool{"fill": true, "balanced": true}
	if !validLayouts[strings.ToLower(c.Split.ChunkLayout)] {
		errs = append(errs, fmt.Sprintf("SPLIT_CHUNK_LAYOUT (%q) must be one of: fill, balanced", c.Split.ChunkLayout))
	}
	if c.Split.MaxConcurrentRequests <= 0 {
		errs = append(errs, "SPLIT_MAX_CONCURRENT_REQUESTS must be positive")
	}
	if c.Split.MaxWaitTime <= 0 {
		errs = append(errs, "SPLIT_MAX_WAIT_TIME must be positive")
	}
	if c.Split.LockTimeout <= 0 {
		errs = append(errs, "SPLIT_LOCK_TIMEOUT must be positive")
	}
	if c.Split.WriteBuffer <= 0 {
		errs = append(errs, "SPLIT_WRITE_BUFFER must be positive")
	}

	// Excel validation
	if c.Excel.MaxColumns <= 0 {
		errs = append(errs, "EXCEL_MAX_COLUMNS must be positive")
	}
	if c.Excel.MaxCellRunes <= 0 {
		errs = append(errs, "EXCEL_MAX_CELL_RUNES must be positive")
	}
	if c.Excel.RowHeightInterval <= 0 {
		errs = append(errs, "EXCEL_ROW_HEIGHT_INTERVAL must be positive")
	}
	if c.Excel.RowHeight <= 0 {
		errs = append(errs, "EXCEL_ROW_HEIGHT must be positive")
	}
	if c.Excel.ColumnWidth <= 0 {
		errs = append(errs, "EXCEL_COLUMN_WIDTH must be positive")
	}

	// History validation
	if c.History.Capacity <= 0 {
		errs = append(errs, "HISTORY_CAPACITY must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL is masked.
func (c *Config) String() string {
	db := "none"
	if c.Database.URL != "" {
		db = "[MASKED]"
	}
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, MaxConns: %d}, ", db, c.Database.MaxConns))
	b.WriteString(fmt.Sprintf("Split: {MaxWorkers: %d, Layout: %q, MaxConcurrentRequests: %d}, ",
		c.Split.MaxWorkers, c.Split.ChunkLayout, c.Split.MaxConcurrentRequests))
	b.WriteString(fmt.Sprintf("Excel: {MaxColumns: %d, MaxCellRunes: %d}, ",
		c.Excel.MaxColumns, c.Excel.MaxCellRunes))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
