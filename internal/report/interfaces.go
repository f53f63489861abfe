package report

import (
	"context"
	"io"
	"time"
)

// JobStore persists generation job metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string) error
	UpdateJobState(ctx context.Context, jobID string, state GenerationState) error
	AttachReport(ctx context.Context, jobID string, reportID string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Repository persists finished reports.
type Repository interface {
	SaveReport(ctx context.Context, r Report) error
	GetReport(ctx context.Context, id string) (Report, error)
	ListReports(ctx context.Context, limit int) ([]Summary, error)
	DeleteReport(ctx context.Context, id string) error
}

// BlobStore writes report content, reads it back by URI and removes it.
// GetObject and DeleteObject wrap ErrNotFound for a missing object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	GetObject(ctx context.Context, uri string) ([]byte, error)
	DeleteObject(ctx context.Context, uri string) error
}

// Publisher pushes report-ready notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for generation jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
