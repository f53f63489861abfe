package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/signal-news/internal/report"
)

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	job := report.Job{ID: "job-1", Topic: "AI in healthcare", Status: report.JobStatusQueued}

	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate job error")
	}
	if err := store.UpdateJobStatus(ctx, job.ID, report.JobStatusRunning, ""); err != nil {
		t.Fatalf("UpdateJobStatus running error = %v", err)
	}
	state := report.GenerationState{IsGenerating: true, CurrentStep: "Selecting best sources...", Phase: "select", Percent: 60}
	if err := store.UpdateJobState(ctx, job.ID, state); err != nil {
		t.Fatalf("UpdateJobState() error = %v", err)
	}
	if err := store.AttachReport(ctx, job.ID, "report_1"); err != nil {
		t.Fatalf("AttachReport() error = %v", err)
	}
	if err := store.UpdateJobStatus(ctx, job.ID, report.JobStatusSucceeded, ""); err != nil {
		t.Fatalf("UpdateJobStatus succeeded error = %v", err)
	}
	if err := store.UpdateJobStatus(ctx, job.ID, report.JobStatusFailed, "late"); err != nil {
		t.Fatalf("UpdateJobStatus after terminal error = %v", err)
	}

	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != report.JobStatusSucceeded || final.Started == nil || final.Finished == nil {
		t.Fatalf("expected timestamps set, got %+v", final)
	}
	if final.ReportID != "report_1" || final.ErrorText != "" {
		t.Fatalf("unexpected job %+v", final)
	}
	if final.State.IsGenerating || final.State.Percent != 60 {
		t.Fatalf("expected generation flag cleared and percent kept, got %+v", final.State)
	}
}

func TestJobStoreUnknownJob(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	if _, err := store.GetJob(ctx, "nope"); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("GetJob() err = %v", err)
	}
	if err := store.UpdateJobStatus(ctx, "nope", report.JobStatusRunning, ""); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("UpdateJobStatus() err = %v", err)
	}
	if err := store.UpdateJobState(ctx, "nope", report.GenerationState{}); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("UpdateJobState() err = %v", err)
	}
	if err := store.AttachReport(ctx, "nope", "r"); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("AttachReport() err = %v", err)
	}
}
