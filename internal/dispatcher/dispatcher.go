// Package dispatcher manages worker fan-out over the generation queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/worker"
)

// Dispatcher fans queued generations out to a pool of workers and routes
// cancel requests to whichever worker holds the job.
type Dispatcher struct {
	queue    report.Queue
	workers  []*worker.Worker
	registry *worker.Registry
}

// New creates a Dispatcher. registry must be the one the workers were built with.
func New(queue report.Queue, workers []*worker.Worker, registry *worker.Registry) *Dispatcher {
	if registry == nil {
		registry = worker.NewRegistry()
	}
	return &Dispatcher{queue: queue, workers: workers, registry: registry}
}

// Run starts all workers and blocks until the context finishes and every
// worker has returned.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue proxies to the underlying queue.
func (d *Dispatcher) Enqueue(ctx context.Context, item report.QueueItem) error {
	if err := d.queue.Enqueue(ctx, item); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Cancel stops a running job, or arranges for a queued one to be skipped. It
// reports whether the job was running.
func (d *Dispatcher) Cancel(jobID string) bool {
	return d.registry.Cancel(jobID)
}

// Depth reports how many generations wait in the queue, or -1 when the queue
// cannot tell.
func (d *Dispatcher) Depth() int {
	if l, ok := d.queue.(interface{ Len() int }); ok {
		return l.Len()
	}
	return -1
}

// Running reports the number of generations in flight.
func (d *Dispatcher) Running() int {
	return d.registry.Running()
}
