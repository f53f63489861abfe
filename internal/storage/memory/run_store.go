package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/signal-news/internal/store"
)

// RunStore provides an in-memory store.RunRepository.
type RunStore struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]store.Run
	phases map[uuid.UUID][]store.PhaseMark
}

// NewRunStore constructs an empty RunStore.
func NewRunStore() *RunStore {
	return &RunStore{
		runs:   make(map[uuid.UUID]store.Run),
		phases: make(map[uuid.UUID][]store.PhaseMark),
	}
}

// UpsertRunStart inserts the run or refreshes its topic and start time.
func (s *RunStore) UpsertRunStart(_ context.Context, jobID uuid.UUID, topic string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	if !ok {
		run = store.Run{JobID: jobID, Status: store.RunRunning}
	}
	run.Topic = topic
	run.StartedAt = startedAt
	s.runs[jobID] = run
	return nil
}

// RecordPhase stores mark once per phase and raises the run's progress.
func (s *RunStore) RecordPhase(_ context.Context, mark store.PhaseMark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.phases[mark.JobID] {
		if existing.Phase == mark.Phase {
			return nil
		}
	}
	s.phases[mark.JobID] = append(s.phases[mark.JobID], mark)
	run, ok := s.runs[mark.JobID]
	if !ok {
		run = store.Run{JobID: mark.JobID, Status: store.RunRunning, StartedAt: mark.ReachedAt}
	}
	if mark.Percent > run.Percent {
		run.Percent = mark.Percent
		run.Phase = mark.Phase
	}
	s.runs[mark.JobID] = run
	return nil
}

// CompleteRun marks the run finished, creating it when no start was seen.
func (s *RunStore) CompleteRun(
	_ context.Context,
	jobID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	reportID *string,
	errMsg *string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[jobID]
	if !ok {
		run = store.Run{JobID: jobID, StartedAt: finishedAt}
	}
	run.FinishedAt = &finishedAt
	run.Status = status
	run.ReportID = reportID
	run.ErrorMessage = errMsg
	s.runs[jobID] = run
	return nil
}

// GetRun loads a run or returns store.ErrNotFound.
func (s *RunStore) GetRun(_ context.Context, jobID uuid.UUID) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[jobID]
	if !ok {
		return store.Run{}, store.ErrNotFound
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (s *RunStore) ListRuns(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.Run, error) {
	s.mu.RLock()
	runs := make([]store.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		runs = append(runs, run)
	}
	s.mu.RUnlock()

	slices.SortFunc(runs, func(a, b store.Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if offset >= len(runs) {
		return []store.Run{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// ListRunPhases returns the phase marks of one run ordered by percent.
func (s *RunStore) ListRunPhases(_ context.Context, jobID uuid.UUID) ([]store.PhaseMark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.runs[jobID]; !ok {
		return nil, store.ErrNotFound
	}
	out := slices.Clone(s.phases[jobID])
	slices.SortStableFunc(out, func(a, b store.PhaseMark) int {
		return cmp.Compare(a.Percent, b.Percent)
	})
	return out, nil
}
