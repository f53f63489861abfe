package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/signal-news/internal/report"
)

// JobStore provides an in-memory report.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]report.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]report.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job report.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus moves a job to status, stamping start and finish times.
// A terminal job keeps its status.
func (s *JobStore) UpdateJobStatus(_ context.Context, jobID string, status report.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, report.ErrNotFound)
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = status
	job.ErrorText = errText
	now := s.now()
	if status == report.JobStatusRunning && job.Started == nil {
		job.Started = &now
	}
	if status.Terminal() {
		job.Finished = &now
		job.State.IsGenerating = false
	}
	s.jobs[jobID] = job
	return nil
}

// UpdateJobState replaces the job's generation state.
func (s *JobStore) UpdateJobState(_ context.Context, jobID string, state report.GenerationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, report.ErrNotFound)
	}
	job.State = state
	s.jobs[jobID] = job
	return nil
}

// AttachReport links the finished report to its job.
func (s *JobStore) AttachReport(_ context.Context, jobID string, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, report.ErrNotFound)
	}
	job.ReportID = reportID
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (report.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return report.Job{}, fmt.Errorf("job %s: %w", jobID, report.ErrNotFound)
	}
	return job, nil
}
