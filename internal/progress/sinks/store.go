package sinks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/progress"
	"github.com/JakeFAU/signal-news/internal/store"
)

// StoreSink persists run history through a store.RunRepository. Step events
// are collapsed to one phase mark per (job, phase) per batch.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards the batch to the repository in event order and returns the
// first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	seen := make(map[phaseKey]struct{})
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStart:
			if err := s.repo.UpsertRunStart(ctx, evt.JobID, evt.Topic, evt.TS); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageStep:
			if evt.Phase == "" {
				continue
			}
			key := phaseKey{jobID: evt.JobID, phase: evt.Phase}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			mark := store.PhaseMark{
				JobID:     evt.JobID,
				Phase:     evt.Phase,
				Step:      evt.Step,
				Percent:   evt.Percent,
				ReachedAt: evt.TS,
			}
			if err := s.repo.RecordPhase(ctx, mark); err != nil {
				return fmt.Errorf("record phase: %w", err)
			}
		case progress.StageJobDone, progress.StageJobError, progress.StageJobCanceled:
			if err := s.complete(ctx, evt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, evt progress.Event) error {
	var (
		status   store.RunStatus
		reportID *string
		note     *string
	)
	switch evt.Stage {
	case progress.StageJobDone:
		status = store.RunSuccess
		id := evt.ReportID
		reportID = &id
	case progress.StageJobCanceled:
		status = store.RunCanceled
	default:
		status = store.RunError
	}
	if evt.Note != "" {
		n := evt.Note
		note = &n
	}
	if err := s.repo.CompleteRun(ctx, evt.JobID, evt.TS, status, reportID, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type phaseKey struct {
	jobID uuid.UUID
	phase string
}
