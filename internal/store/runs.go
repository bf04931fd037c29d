// Package store persists batch runs and the per-user matching output.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/digest-service/internal/model"
)

// ErrRunNotFound is returned when no batch run exists for a date.
var ErrRunNotFound = errors.New("batch run not found")

// RunStore persists BatchRun rows in the batch_jobs table.
// One row per batch date; the orchestrator owns all writes.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore returns a RunStore backed by the given pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// GetByDate returns the run row for batchDate, or ErrRunNotFound.
func (s *RunStore) GetByDate(ctx context.Context, batchDate time.Time) (*model.BatchRun, error) {
	var (
		run       model.BatchRun
		errorLogs []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, batch_date, status, total_records, processed_records,
		        success_count, error_count, last_error_message, error_logs,
		        started_at, finished_at, created_at, updated_at
		 FROM batch_jobs
		 WHERE batch_date = $1`,
		batchDate,
	).Scan(
		&run.ID, &run.BatchDate, &run.Status, &run.TotalRecords,
		&run.ProcessedRecords, &run.SuccessCount, &run.ErrorCount,
		&run.LastErrorMessage, &errorLogs,
		&run.StartedAt, &run.FinishedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getByDate query: %w", err)
	}

	if len(errorLogs) > 0 {
		if err := json.Unmarshal(errorLogs, &run.ErrorLogs); err != nil {
			return nil, fmt.Errorf("getByDate error_logs: %w", err)
		}
	}
	return &run, nil
}

// Create inserts a new run row at PENDING.
func (s *RunStore) Create(ctx context.Context, run *model.BatchRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO batch_jobs (id, batch_date, status, total_records,
		                         processed_records, success_count, error_count)
		 VALUES ($1, $2, $3, 0, 0, 0, 0)`,
		run.ID, run.BatchDate, run.Status,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// Update writes the full mutable state of a run row: status, counters,
// error log and timestamps.
func (s *RunStore) Update(ctx context.Context, run *model.BatchRun) error {
	errorLogs, err := json.Marshal(run.ErrorLogs)
	if err != nil {
		return fmt.Errorf("marshal error_logs: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_jobs
		 SET status             = $1,
		     total_records      = $2,
		     processed_records  = $3,
		     success_count      = $4,
		     error_count        = $5,
		     last_error_message = $6,
		     error_logs         = $7::jsonb,
		     started_at         = $8,
		     finished_at        = $9,
		     updated_at         = NOW()
		 WHERE id = $10`,
		run.Status, run.TotalRecords, run.ProcessedRecords,
		run.SuccessCount, run.ErrorCount, run.LastErrorMessage,
		string(errorLogs), run.StartedAt, run.FinishedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}
