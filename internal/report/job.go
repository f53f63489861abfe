package report

import "time"

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// GenerationState is what a progress indicator renders while a job runs.
type GenerationState struct {
	IsGenerating bool    `json:"isGenerating"`
	CurrentStep  string  `json:"currentStep"`
	Phase        string  `json:"phase,omitempty"`
	Percent      float64 `json:"percent"`
}

// Job is the metadata persisted for each submitted generation request.
type Job struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	Preferences Preferences     `json:"preferences"`
	Status      JobStatus       `json:"status"`
	Submitted   time.Time       `json:"submittedAt"`
	Started     *time.Time      `json:"startedAt,omitempty"`
	Finished    *time.Time      `json:"finishedAt,omitempty"`
	ErrorText   string          `json:"error,omitempty"`
	State       GenerationState `json:"state"`
	ReportID    string          `json:"reportId,omitempty"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID       string
	Topic       string
	Preferences Preferences
	Attempt     int
	Submitted   int64
}
