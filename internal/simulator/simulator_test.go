package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("report_%d", g.n), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("entropy exhausted") }

func newTestSimulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	sim, err := New(cfg, &seqIDs{}, nil)
	require.NoError(t, err)
	return sim
}

func TestRunEmitsStepsInOrderWithSpacing(t *testing.T) {
	t.Parallel()

	const interval = 20 * time.Millisecond
	steps := []string{"one", "two", "three", "four"}
	sim := newTestSimulator(t, Config{Steps: steps, Interval: interval, Settle: 5 * time.Millisecond})

	var got []Step
	start := time.Now()
	id, err := sim.Run(context.Background(), func(s Step) {
		got = append(got, s)
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, "report_1", id)
	require.Len(t, got, len(steps))
	for k, s := range got {
		require.Equal(t, k, s.Index)
		require.Equal(t, steps[k], s.Text)
		require.Equal(t, len(steps), s.Total)
		require.GreaterOrEqual(t, s.Elapsed, time.Duration(k)*interval, "step %d fired early", k)
	}
	require.GreaterOrEqual(t, elapsed, time.Duration(len(steps))*interval)
}

func TestRunWithoutSubscriberWaitsQuietDuration(t *testing.T) {
	t.Parallel()

	sim := newTestSimulator(t, Config{Steps: DefaultSteps(), Interval: time.Hour, Quiet: 15 * time.Millisecond})

	start := time.Now()
	id, err := sim.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestRunCanceledStopsEarly(t *testing.T) {
	t.Parallel()

	sim := newTestSimulator(t, Config{Steps: DefaultSteps(), Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	done := make(chan error, 1)
	go func() {
		_, err := sim.Run(ctx, func(Step) { calls++ })
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not observe cancellation")
	}
	require.Equal(t, 1, calls)
}

func TestRunPropagatesIDError(t *testing.T) {
	t.Parallel()

	sim, err := New(Config{Steps: []string{"only"}}, failingIDs{}, nil)
	require.NoError(t, err)
	_, err = sim.Run(context.Background(), func(Step) {})
	require.ErrorContains(t, err, "entropy exhausted")
}

func TestNewRequiresIDGenerator(t *testing.T) {
	t.Parallel()

	_, err := New(DefaultConfig(), nil, nil)
	require.Error(t, err)
}

func TestStartDeliversUpdatesAndResult(t *testing.T) {
	t.Parallel()

	steps := []string{"Refining search query...", "Polishing final report..."}
	sim := newTestSimulator(t, Config{Steps: steps, Interval: 5 * time.Millisecond})

	h := sim.Start(context.Background())
	var texts []string
	for st := range h.Updates() {
		texts = append(texts, st.Text)
	}
	id, err := h.Result()
	require.NoError(t, err)
	require.Equal(t, "report_1", id)
	require.Equal(t, steps, texts)
}

func TestHandleCancelReleasesTimers(t *testing.T) {
	t.Parallel()

	sim := newTestSimulator(t, Config{Steps: DefaultSteps(), Interval: time.Hour, Settle: time.Hour})
	h := sim.Start(context.Background())

	first := <-h.Updates()
	require.Equal(t, 0, first.Index)

	h.Cancel()
	h.Cancel()

	select {
	case <-h.Done():
	default:
		t.Fatal("Done must be closed once Cancel returns")
	}
	_, ok := <-h.Updates()
	require.False(t, ok, "no steps may follow cancellation")

	_, err := h.Result()
	require.ErrorIs(t, err, context.Canceled)
}

func TestStartHonorsParentContext(t *testing.T) {
	t.Parallel()

	sim := newTestSimulator(t, Config{Steps: DefaultSteps(), Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	h := sim.Start(ctx)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("run ignored parent cancellation")
	}
	_, err := h.Result()
	require.ErrorIs(t, err, context.Canceled)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.Len(t, cfg.Steps, 8)
	require.Equal(t, 800*time.Millisecond, cfg.Interval)
	require.Equal(t, time.Second, cfg.Settle)

	cfg.Steps[0] = "mutated"
	require.Equal(t, "Refining search query...", DefaultSteps()[0])
}
