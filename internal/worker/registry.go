package worker

import (
	"context"
	"errors"
	"sync"
)

// Registry tracks the cancel functions of running jobs so a cancel request can
// reach a generation in flight, and remembers cancels for jobs still queued.
type Registry struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc
	pending map[string]struct{}
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		running: make(map[string]context.CancelFunc),
		pending: make(map[string]struct{}),
	}
}

// Begin registers cancel for jobID. It returns false when the job was canceled
// before it started, in which case the caller must not run it.
func (r *Registry) Begin(jobID string, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[jobID]; ok {
		delete(r.pending, jobID)
		return false
	}
	r.running[jobID] = cancel
	return true
}

// Finish forgets jobID.
func (r *Registry) Finish(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, jobID)
}

// Cancel stops jobID. It reports true when the job was running; otherwise the
// cancel is remembered for when a worker picks the job up.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.running[jobID]
	if !ok {
		r.pending[jobID] = struct{}{}
		return false
	}
	cancel()
	return true
}

// Settle runs commit for jobID unless ctx was canceled first. Cancels wait
// until commit returns, after which the job no longer counts as running.
// It returns context.Canceled without calling commit when the cancel won.
func (r *Registry) Settle(ctx context.Context, jobID string, commit func() error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}
	if err := commit(); err != nil {
		return err
	}
	delete(r.running, jobID)
	return nil
}

// Running reports the number of jobs in flight.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}
