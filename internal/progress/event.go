package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageJobStart    Stage = "JOB_START"
	StageStep        Stage = "STEP"
	StageJobDone     Stage = "JOB_DONE"
	StageJobError    Stage = "JOB_ERROR"
	StageJobCanceled Stage = "JOB_CANCELED"
)

// Terminal reports whether the stage ends a job.
func (s Stage) Terminal() bool {
	return s == StageJobDone || s == StageJobError || s == StageJobCanceled
}

// Event captures a single moment in a generation job.
type Event struct {
	// JobID identifies the generation job.
	JobID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// Topic is set on JOB_START.
	Topic string
	// Step is the free-text step message for STEP events.
	Step string
	// StepIndex is the zero-based position of Step in the step list.
	StepIndex int
	// Phase is the mapped phase identifier, empty when the step matched none.
	Phase string
	// Percent is the monotonic completion percentage after this event.
	Percent float64
	// ReportID is set on JOB_DONE.
	ReportID string
	// Dur is the elapsed job time for terminal events.
	Dur time.Duration
	// Note carries error text for JOB_ERROR.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.JobID == uuid.Nil {
		return errors.New("job id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageJobStart, StageJobError, StageJobCanceled:
	case StageStep:
		if e.Step == "" {
			return errors.New("step event requires step text")
		}
	case StageJobDone:
		if e.ReportID == "" {
			return errors.New("job done requires report id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Percent < 0 || e.Percent > 100 {
		return fmt.Errorf("percent %v out of range", e.Percent)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
