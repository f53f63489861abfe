package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/signal-news/internal/store"
)

const runColumns = `job_id, topic, started_at, finished_at, status, phase, percent, report_id, error_message`

// RunStore implements store.RunRepository on Postgres.
type RunStore struct {
	pool Pool
}

// NewRunStore wraps an open pool.
func NewRunStore(pool Pool) (*RunStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{pool: pool}, nil
}

// UpsertRunStart inserts the run or refreshes its topic and start time.
func (s *RunStore) UpsertRunStart(ctx context.Context, jobID uuid.UUID, topic string, startedAt time.Time) error {
	query := `
		INSERT INTO report_runs (job_id, topic, started_at, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE
		SET topic = EXCLUDED.topic, started_at = EXCLUDED.started_at;
	`
	if _, err := s.pool.Exec(ctx, query, jobID, topic, startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("failed to upsert run start: %w", err)
	}
	return nil
}

// RecordPhase stores the first mark per phase and raises the run's progress.
func (s *RunStore) RecordPhase(ctx context.Context, mark store.PhaseMark) error {
	insert := `
		INSERT INTO report_run_phases (job_id, phase, step, percent, reached_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (job_id, phase) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, insert, mark.JobID, mark.Phase, mark.Step, mark.Percent, mark.ReachedAt); err != nil {
		return fmt.Errorf("failed to insert phase mark: %w", err)
	}
	raise := `
		UPDATE report_runs
		SET phase = $1, percent = $2
		WHERE job_id = $3 AND percent < $2;
	`
	if _, err := s.pool.Exec(ctx, raise, mark.Phase, mark.Percent, mark.JobID); err != nil {
		return fmt.Errorf("failed to raise run progress: %w", err)
	}
	return nil
}

// CompleteRun marks the run finished.
func (s *RunStore) CompleteRun(
	ctx context.Context,
	jobID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	reportID *string,
	errMsg *string,
) error {
	query := `
		UPDATE report_runs
		SET finished_at = $1, status = $2, report_id = $3, error_message = $4
		WHERE job_id = $5;
	`
	if _, err := s.pool.Exec(ctx, query, finishedAt, status, reportID, errMsg, jobID); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun loads one run or returns store.ErrNotFound.
func (s *RunStore) GetRun(ctx context.Context, jobID uuid.UUID) (store.Run, error) {
	query := `SELECT ` + runColumns + ` FROM report_runs WHERE job_id = $1;`
	run, err := scanRun(s.pool.QueryRow(ctx, query, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Run{}, store.ErrNotFound
	}
	if err != nil {
		return store.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally filtered by status.
func (s *RunStore) ListRuns(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	query := `
		SELECT ` + runColumns + `
		FROM report_runs
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3;
	`
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.pool.Query(ctx, query, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []store.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListRunPhases returns one run's phase marks in progress order.
func (s *RunStore) ListRunPhases(ctx context.Context, jobID uuid.UUID) ([]store.PhaseMark, error) {
	query := `
		SELECT job_id, phase, step, percent, reached_at
		FROM report_run_phases
		WHERE job_id = $1
		ORDER BY percent ASC, reached_at ASC;
	`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list run phases: %w", err)
	}
	defer rows.Close()

	marks := []store.PhaseMark{}
	for rows.Next() {
		var m store.PhaseMark
		if err := rows.Scan(&m.JobID, &m.Phase, &m.Step, &m.Percent, &m.ReachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan phase row: %w", err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate phases: %w", err)
	}
	return marks, nil
}

func scanRun(row pgx.Row) (store.Run, error) {
	var (
		run    store.Run
		status string
	)
	err := row.Scan(
		&run.JobID,
		&run.Topic,
		&run.StartedAt,
		&run.FinishedAt,
		&status,
		&run.Phase,
		&run.Percent,
		&run.ReportID,
		&run.ErrorMessage,
	)
	run.Status = store.RunStatus(status)
	return run, err
}
