package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/progress"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/worker"
)

// Server-Sent Event names written by streamJob.
const (
	sseState    = "state"
	sseProgress = "progress"
	sseDone     = "done"
	sseError    = "error"
	sseCanceled = "canceled"
)

type progressFrame struct {
	JobID     string  `json:"jobId"`
	Step      string  `json:"step,omitempty"`
	StepIndex int     `json:"stepIndex"`
	Phase     string  `json:"phase,omitempty"`
	Percent   float64 `json:"percent"`
	ReportID  string  `json:"reportId,omitempty"`
	Error     string  `json:"error,omitempty"`
	ElapsedMs int64   `json:"elapsedMs,omitempty"`
}

// streamJob handles GET /api/reports/jobs/{job_id}/events. It writes the job's
// current state, then one event per progress step until the job ends or the
// client goes away.
func (s *Server) streamJob(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		writeError(w, http.StatusServiceUnavailable, "progress streaming disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	// Subscribe before the snapshot so no step falls between the two.
	events, unsubscribe := s.deps.Feed.Subscribe(worker.EventID(chiJobID(r)))
	defer unsubscribe()

	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, sseState, map[string]any{"job": job}); err != nil {
		return
	}
	if job.Status.Terminal() {
		name, frame := terminalFrame(job)
		_ = writeEvent(w, name, frame)
		flusher.Flush()
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case evt, open := <-events:
			if !open {
				return
			}
			name, frame := eventFrame(job.ID, evt)
			if err := writeEvent(w, name, frame); err != nil {
				s.logger.Debug("stream write failed", zap.String("job_id", job.ID), zap.Error(err))
				return
			}
			flusher.Flush()
			if evt.Stage.Terminal() {
				return
			}
		}
	}
}

func eventFrame(jobID string, evt progress.Event) (string, progressFrame) {
	frame := progressFrame{
		JobID:     jobID,
		Step:      evt.Step,
		StepIndex: evt.StepIndex,
		Phase:     evt.Phase,
		Percent:   evt.Percent,
		ReportID:  evt.ReportID,
		Error:     evt.Note,
		ElapsedMs: evt.Dur.Milliseconds(),
	}
	switch evt.Stage {
	case progress.StageJobDone:
		return sseDone, frame
	case progress.StageJobError:
		return sseError, frame
	case progress.StageJobCanceled:
		return sseCanceled, frame
	default:
		return sseProgress, frame
	}
}

func terminalFrame(job report.Job) (string, progressFrame) {
	frame := progressFrame{
		JobID:    job.ID,
		Phase:    job.State.Phase,
		Percent:  job.State.Percent,
		ReportID: job.ReportID,
		Error:    job.ErrorText,
	}
	switch job.Status {
	case report.JobStatusSucceeded:
		return sseDone, frame
	case report.JobStatusCanceled:
		return sseCanceled, frame
	default:
		return sseError, frame
	}
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return fmt.Errorf("write %s event: %w", name, err)
	}
	return nil
}
