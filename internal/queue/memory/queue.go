// Package memory provides the bounded in-process generation queue.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/signal-news/internal/report"
)

// ErrClosed is returned once the queue has been closed.
var ErrClosed = errors.New("queue closed")

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch        chan report.QueueItem
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan report.QueueItem, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes an item, blocking while the queue is full until ctx ends.
func (q *Queue) Enqueue(ctx context.Context, item report.QueueItem) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return ErrClosed
	case q.ch <- item:
		return nil
	}
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (report.QueueItem, error) {
	select {
	case <-ctx.Done():
		return report.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case <-q.done:
		return report.QueueItem{}, ErrClosed
	case item := <-q.ch:
		return item, nil
	}
}

// Len reports how many items are waiting.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue; pending items are abandoned.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
