package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS split_runs (
	id               UUID PRIMARY KEY,
	input_path       TEXT        NOT NULL,
	output_dir       TEXT        NOT NULL,
	rows_per_file    INTEGER     NOT NULL,
	has_header       BOOLEAN     NOT NULL,
	convert_to_excel BOOLEAN     NOT NULL,
	strategy         TEXT        NOT NULL,
	success          BOOLEAN     NOT NULL,
	file_count       INTEGER     NOT NULL,
	error            TEXT,
	started_at       TIMESTAMPTZ NOT NULL,
	duration_ms      BIGINT      NOT NULL
)`

const createRunsIndex = `CREATE INDEX IF NOT EXISTS split_runs_started_at_idx ON split_runs (started_at DESC)`

// PostgresStore records runs in the split_runs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the split_runs table if needed.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	for _, stmt := range []string{createRunsTable, createRunsIndex} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate split_runs: %w", err)
		}
	}
	return &PostgresStore{pool: pool}, nil
}

// Record implements Store.
func (p *PostgresStore) Record(ctx context.Context, run Run) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("record run: invalid id %q: %w", run.ID, err)
	}

	errText := pgtype.Text{String: run.Error, Valid: run.Error != ""}
	_, err = p.pool.Exec(ctx, `INSERT INTO split_runs
		(id, input_path, output_dir, rows_per_file, has_header, convert_to_excel,
		 strategy, success, file_count, error, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pgtype.UUID{Bytes: id, Valid: true},
		run.InputPath, run.OutputDir, run.RowsPerFile, run.HasHeader, run.ConvertToExcel,
		run.Strategy, run.Success, run.FileCount, errText, run.StartedAt, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Recent implements Store, newest first.
func (p *PostgresStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, input_path, output_dir, rows_per_file, has_header,
		convert_to_excel, strategy, success, file_count, error, started_at, duration_ms
		FROM split_runs ORDER BY started_at DESC LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run      Run
			id       pgtype.UUID
			errText  pgtype.Text
			duration int64
		)
		if err := rows.Scan(&id, &run.InputPath, &run.OutputDir, &run.RowsPerFile, &run.HasHeader,
			&run.ConvertToExcel, &run.Strategy, &run.Success, &run.FileCount, &errText,
			&run.StartedAt, &duration); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.ID = uuid.UUID(id.Bytes).String()
		run.Error = errText.String
		run.Duration = time.Duration(duration) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
