package sinks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/progress"
)

const defaultFeedBuffer = 32

// FeedSink relays events to live per-job subscribers. Subscriptions close once
// their job emits a terminal event or the sink is closed.
type FeedSink struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*subscription]struct{}
	buffer int
	closed bool
	logger *zap.Logger
}

type subscription struct {
	ch chan progress.Event
}

// NewFeedSink builds a FeedSink whose subscriber channels hold buffer events.
func NewFeedSink(buffer int, logger *zap.Logger) *FeedSink {
	if buffer <= 0 {
		buffer = defaultFeedBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedSink{
		subs:   make(map[uuid.UUID]map[*subscription]struct{}),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers interest in jobID. The returned cancel func is safe to
// call more than once.
func (f *FeedSink) Subscribe(jobID uuid.UUID) (<-chan progress.Event, func()) {
	sub := &subscription{ch: make(chan progress.Event, f.buffer)}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	set := f.subs[jobID]
	if set == nil {
		set = make(map[*subscription]struct{})
		f.subs[jobID] = set
	}
	set[sub] = struct{}{}
	return sub.ch, func() { f.unsubscribe(jobID, sub) }
}

func (f *FeedSink) unsubscribe(jobID uuid.UUID, sub *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.subs[jobID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(f.subs, jobID)
	}
}

// Subscribers reports the number of live subscriptions for jobID.
func (f *FeedSink) Subscribers(jobID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[jobID])
}

// Consume delivers events without blocking; a subscriber whose buffer is full
// misses the event.
func (f *FeedSink) Consume(_ context.Context, batch []progress.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, evt := range batch {
		set := f.subs[evt.JobID]
		for sub := range set {
			select {
			case sub.ch <- evt:
			default:
				f.logger.Debug("feed subscriber lagging", zap.String("job_id", evt.JobID.String()))
			}
		}
		if evt.Stage.Terminal() {
			for sub := range set {
				close(sub.ch)
			}
			delete(f.subs, evt.JobID)
		}
	}
	return nil
}

// Close ends every subscription.
func (f *FeedSink) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, set := range f.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(f.subs, id)
	}
	f.closed = true
	return nil
}
