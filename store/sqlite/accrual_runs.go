package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// AccrualRun records one monthly accrual batch.
type AccrualRun struct {
	PeriodKey   string     `json:"period_key"`
	Status      string     `json:"status"` // running, completed, failed
	Processed   int        `json:"processed"`
	Skipped     int        `json:"skipped"`
	Errors      int        `json:"errors"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

const (
	AccrualRunRunning   = "running"
	AccrualRunCompleted = "completed"
	AccrualRunFailed    = "failed"
)

func (s *Store) SaveAccrualRun(ctx context.Context, r AccrualRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accrual_runs (period_key, status, processed, skipped, errors, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period_key) DO UPDATE SET
			status = excluded.status,
			processed = excluded.processed,
			skipped = excluded.skipped,
			errors = excluded.errors,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at`,
		r.PeriodKey, r.Status, r.Processed, r.Skipped, r.Errors, r.Error,
		formatTime(r.StartedAt), nullTime(r.CompletedAt),
	)
	return mapError(err)
}

func (s *Store) GetAccrualRun(ctx context.Context, periodKey string) (*AccrualRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT period_key, status, processed, skipped, errors, error, started_at, completed_at
		FROM accrual_runs WHERE period_key = ?`, periodKey)
	r, err := scanAccrualRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListAccrualRuns returns runs newest period first.
func (s *Store) ListAccrualRuns(ctx context.Context) ([]AccrualRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT period_key, status, processed, skipped, errors, error, started_at, completed_at
		FROM accrual_runs ORDER BY period_key DESC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []AccrualRun
	for rows.Next() {
		r, err := scanAccrualRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// IsAccrualComplete reports whether the period already has a completed run.
func (s *Store) IsAccrualComplete(ctx context.Context, periodKey string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM accrual_runs WHERE period_key = ? AND status = ?`,
		periodKey, AccrualRunCompleted,
	).Scan(&n)
	if err != nil {
		return false, mapError(err)
	}
	return n > 0, nil
}

func scanAccrualRun(row scanner) (*AccrualRun, error) {
	var (
		r           AccrualRun
		startedAt   string
		completedAt sql.NullString
	)
	if err := row.Scan(&r.PeriodKey, &r.Status, &r.Processed, &r.Skipped, &r.Errors, &r.Error, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	r.StartedAt = parseTime(startedAt)
	r.CompletedAt = parseNullTime(completedAt)
	return &r, nil
}
