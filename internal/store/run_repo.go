package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the report_runs.status column.
type RunStatus string

// Run statuses persisted in report_runs.status.
const (
	RunRunning  RunStatus = "running"
	RunSuccess  RunStatus = "success"
	RunError    RunStatus = "error"
	RunCanceled RunStatus = "canceled"
)

// ParseRunStatus validates a status filter value.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch st := RunStatus(s); st {
	case RunRunning, RunSuccess, RunError, RunCanceled:
		return st, true
	}
	return "", false
}

// Run is one generation attempt as recorded from progress events.
type Run struct {
	JobID      uuid.UUID
	Topic      string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     RunStatus
	// Phase is the furthest phase reached, empty before the first match.
	Phase        string
	Percent      float64
	ReportID     *string
	ErrorMessage *string
}

// PhaseMark records the first time a run reached a phase.
type PhaseMark struct {
	JobID     uuid.UUID
	Phase     string
	Step      string
	Percent   float64
	ReachedAt time.Time
}

// RunRepository persists generation runs and their phase marks.
type RunRepository interface {
	// UpsertRunStart inserts the run or refreshes its start time.
	UpsertRunStart(ctx context.Context, jobID uuid.UUID, topic string, startedAt time.Time) error
	// RecordPhase stores mark unless the run already reached that phase, and
	// raises the run's phase and percent when mark is further along.
	RecordPhase(ctx context.Context, mark PhaseMark) error
	// CompleteRun marks the run finished.
	CompleteRun(
		ctx context.Context,
		jobID uuid.UUID,
		finishedAt time.Time,
		status RunStatus,
		reportID *string,
		errMsg *string,
	) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, jobID uuid.UUID) (Run, error)
	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
	// ListRunPhases returns the phase marks of one run in phase order.
	ListRunPhases(ctx context.Context, jobID uuid.UUID) ([]PhaseMark, error)
}
