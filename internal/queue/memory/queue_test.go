package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/signal-news/internal/report"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan report.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	if err := q.Enqueue(context.Background(), report.QueueItem{JobID: "job-1", Topic: "AI"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.JobID != "job-1" || got.Topic != "AI" {
			t.Fatalf("unexpected item %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	if err := q.Enqueue(context.Background(), report.QueueItem{JobID: "primed"}); err != nil {
		t.Fatalf("failed to prime queue: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected len 1, got %d", q.Len())
	}
	full, stop := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer stop()
	if err := q.Enqueue(full, report.QueueItem{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected enqueue deadline error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close()
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Dequeue, got %v", err)
	}
	if err := q.Enqueue(context.Background(), report.QueueItem{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from Enqueue, got %v", err)
	}
}
