package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/signal-news/internal/progress"
)

// PrometheusSink exports generation progress as Prometheus metrics.
type PrometheusSink struct {
	reportsStarted   prometheus.Counter
	reportsCompleted *prometheus.CounterVec
	reportsRunning   prometheus.Gauge
	reportRuntime    *prometheus.HistogramVec
	phaseReached     *prometheus.CounterVec

	running *runningSet
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		reportsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signal_reports_started_total",
			Help: "Report generations that have started.",
		}),
		reportsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_reports_completed_total",
			Help: "Report generations finished, partitioned by result.",
		}, []string{"result"}),
		reportsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signal_reports_running",
			Help: "Report generations currently in flight.",
		}),
		reportRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signal_report_runtime_seconds",
			Help:    "Wall time per finished generation.",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 15, 30, 60},
		}, []string{"result"}),
		phaseReached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_report_phase_steps_total",
			Help: "Step notifications partitioned by mapped phase.",
		}, []string{"phase"}),
		running: &runningSet{ids: make(map[uuid.UUID]struct{})},
	}
	for _, c := range []prometheus.Collector{
		s.reportsStarted,
		s.reportsCompleted,
		s.reportsRunning,
		s.reportRuntime,
		s.phaseReached,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageJobStart:
			s.reportsStarted.Inc()
			if s.running.add(evt.JobID) {
				s.reportsRunning.Inc()
			}
		case progress.StageStep:
			phase := evt.Phase
			if phase == "" {
				phase = "none"
			}
			s.phaseReached.WithLabelValues(phase).Inc()
		case progress.StageJobDone, progress.StageJobError, progress.StageJobCanceled:
			result := resultLabel(evt.Stage)
			s.reportsCompleted.WithLabelValues(result).Inc()
			if evt.Dur > 0 {
				s.reportRuntime.WithLabelValues(result).Observe(evt.Dur.Seconds())
			}
			if s.running.remove(evt.JobID) {
				s.reportsRunning.Dec()
			}
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func resultLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageJobDone:
		return "success"
	case progress.StageJobCanceled:
		return "canceled"
	default:
		return "error"
	}
}

type runningSet struct {
	mu  sync.Mutex
	ids map[uuid.UUID]struct{}
}

func (r *runningSet) add(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; ok {
		return false
	}
	r.ids[id] = struct{}{}
	return true
}

func (r *runningSet) remove(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[id]; !ok {
		return false
	}
	delete(r.ids, id)
	return true
}
