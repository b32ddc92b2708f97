// Package history keeps a record of split runs so the HTTP boundary can list
// recent work. Two stores are provided: a bounded in-memory ring for
// single-process use and a PostgreSQL table when DATABASE_URL is configured.
package history

import (
	"context"
	"time"
)

// DefaultLimit is the number of runs Recent returns when no limit is given.
const DefaultLimit = 20

// MaxLimit caps the limit accepted by Recent.
const MaxLimit = 200

// Run is one finished split invocation.
type Run struct {
	ID             string        `json:"id"`
	InputPath      string        `json:"input_path"`
	OutputDir      string        `json:"output_dir"`
	RowsPerFile    int           `json:"rows_per_file"`
	HasHeader      bool          `json:"has_header"`
	ConvertToExcel bool          `json:"convert_to_excel"`
	Strategy       string        `json:"strategy"`
	Success        bool          `json:"success"`
	FileCount      int           `json:"file_count"`
	Error          string        `json:"error,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration_ns"`
}

// Store persists runs.
type Store interface {
	Record(ctx context.Context, run Run) error
	Recent(ctx context.Context, limit int) ([]Run, error)
}

// ClampLimit applies DefaultLimit and MaxLimit to a requested limit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
