// Package simulator plays back a fixed list of report-generation steps on a
// timer and resolves with a new report identifier once the list is exhausted.
// No real work happens; the value is the timing and the cancellation contract.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/report"
)

// Defaults mirror the pacing the browser client was built against.
const (
	DefaultInterval = 800 * time.Millisecond
	DefaultSettle   = time.Second
	DefaultQuiet    = 3 * time.Second
)

var defaultSteps = []string{
	"Refining search query...",
	"Found articles from sources",
	"Analyzing article relevance...",
	"Profiled articles",
	"Selecting best sources...",
	"Selected high-quality articles",
	"Generating comprehensive analysis...",
	"Polishing final report...",
}

// DefaultSteps returns a copy of the canned step messages.
func DefaultSteps() []string {
	return append([]string(nil), defaultSteps...)
}

// Config controls pacing.
//   - Steps: messages emitted in order.
//   - Interval: spacing between consecutive messages; the first fires immediately.
//   - Settle: extra wait after the last interval before resolving.
//   - Quiet: total wait when the caller does not subscribe to steps.
type Config struct {
	Steps    []string
	Interval time.Duration
	Settle   time.Duration
	Quiet    time.Duration
}

// DefaultConfig returns the canned steps with default pacing.
func DefaultConfig() Config {
	return Config{
		Steps:    DefaultSteps(),
		Interval: DefaultInterval,
		Settle:   DefaultSettle,
		Quiet:    DefaultQuiet,
	}
}

// Step is one progress notification.
type Step struct {
	// Index is the zero-based position in Config.Steps.
	Index int
	// Total is len(Config.Steps).
	Total int
	// Text is the step message.
	Text string
	// Elapsed is the time since the run started when the step fired.
	Elapsed time.Duration
}

// Simulator runs step playback. It holds no per-run state and may be shared.
type Simulator struct {
	cfg    Config
	ids    report.IDGenerator
	logger *zap.Logger
}

// New builds a Simulator. Negative durations are treated as zero.
func New(cfg Config, ids report.IDGenerator, logger *zap.Logger) (*Simulator, error) {
	if ids == nil {
		return nil, errors.New("id generator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Steps = append([]string(nil), cfg.Steps...)
	cfg.Interval = max(cfg.Interval, 0)
	cfg.Settle = max(cfg.Settle, 0)
	cfg.Quiet = max(cfg.Quiet, 0)
	return &Simulator{cfg: cfg, ids: ids, logger: logger}, nil
}

// Config returns the pacing in use.
func (s *Simulator) Config() Config {
	cfg := s.cfg
	cfg.Steps = append([]string(nil), s.cfg.Steps...)
	return cfg
}

// Run emits every step to notify in order, the k-th (1-based) no earlier than
// (k-1)*Interval after start, then returns a new identifier no earlier than
// len(Steps)*Interval+Settle. With a nil notify it waits Quiet instead.
// Cancelling ctx stops the timer and returns ctx.Err(); notify is never called
// after Run returns.
func (s *Simulator) Run(ctx context.Context, notify func(Step)) (string, error) {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	start := time.Now()
	if notify == nil {
		if err := sleepUntil(ctx, timer, start.Add(s.cfg.Quiet)); err != nil {
			return "", err
		}
		return s.newID()
	}

	total := len(s.cfg.Steps)
	for i, text := range s.cfg.Steps {
		if err := sleepUntil(ctx, timer, start.Add(time.Duration(i)*s.cfg.Interval)); err != nil {
			return "", err
		}
		step := Step{Index: i, Total: total, Text: text, Elapsed: time.Since(start)}
		s.logger.Debug("simulated step", zap.Int("index", i), zap.String("text", text))
		notify(step)
	}
	if err := sleepUntil(ctx, timer, start.Add(time.Duration(total)*s.cfg.Interval+s.cfg.Settle)); err != nil {
		return "", err
	}
	return s.newID()
}

func (s *Simulator) newID() (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate report id: %w", err)
	}
	return id, nil
}

// sleepUntil blocks until deadline or ctx is done. timer must be stopped and drained.
func sleepUntil(ctx context.Context, timer *time.Timer, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simulation canceled: %w", err)
	}
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	timer.Reset(d)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		return fmt.Errorf("simulation canceled: %w", ctx.Err())
	}
}

// Handle controls a run started with Start.
type Handle struct {
	cancel  context.CancelFunc
	updates chan Step
	done    chan struct{}

	mu  sync.Mutex
	id  string
	err error
}

// Start launches Run on its own goroutine. Steps are delivered on Updates,
// which is closed when the run ends.
func (s *Simulator) Start(ctx context.Context) *Handle {
	runCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		cancel:  cancel,
		updates: make(chan Step, len(s.cfg.Steps)),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(h.done)
		defer close(h.updates)
		defer cancel()
		id, err := s.Run(runCtx, func(st Step) {
			h.updates <- st
		})
		h.mu.Lock()
		h.id, h.err = id, err
		h.mu.Unlock()
	}()
	return h
}

// Updates streams step notifications.
func (h *Handle) Updates() <-chan Step {
	return h.updates
}

// Done is closed once the run has finished and its timers are released.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel stops the run and waits for its goroutine to exit. Safe to call more than once.
func (h *Handle) Cancel() {
	h.cancel()
	<-h.done
}

// Result returns the identifier and error. It blocks until the run finishes.
func (h *Handle) Result() (string, error) {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id, h.err
}
