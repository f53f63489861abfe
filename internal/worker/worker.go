// Package worker runs report generations pulled from the job queue.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/phase"
	"github.com/JakeFAU/signal-news/internal/progress"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/simulator"
	"github.com/JakeFAU/signal-news/internal/telemetry"
)

const tracerName = "github.com/JakeFAU/signal-news/internal/worker"

// Config controls Worker behavior.
type Config struct {
	ContentType string
	BlobPrefix  string
	// Topic receives report-ready notifications; empty disables publishing.
	Topic string
	// JobTimeout bounds a single generation; zero means no limit.
	JobTimeout time.Duration
}

// Drafter turns a finished simulation into report content.
type Drafter interface {
	Draft(id, topic string, prefs report.Preferences, started, finished time.Time) report.Report
}

// Deps bundles the collaborators a Worker needs. Publisher, Emitter and Tracer may be nil.
type Deps struct {
	Queue     report.Queue
	Jobs      report.JobStore
	Reports   report.Repository
	Blobs     report.BlobStore
	Publisher report.Publisher
	Hasher    report.Hasher
	Clock     report.Clock
	Simulator *simulator.Simulator
	Drafter   Drafter
	Emitter   progress.Emitter
	Registry  *Registry
	Tracer    trace.Tracer
}

// Worker consumes queue items and executes the generation pipeline.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/markdown; charset=utf-8"
	}
	if deps.Registry == nil {
		deps.Registry = NewRegistry()
	}
	if deps.Tracer == nil {
		deps.Tracer = telemetry.Tracer(tracerName)
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			if !sleepCtx(ctx, 50*time.Millisecond) {
				return
			}
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item report.QueueItem) {
	run := &jobRun{
		w:       w,
		item:    item,
		eventID: EventID(item.JobID),
		tracker: phase.NewTracker(),
		started: w.deps.Clock.Now(),
		logger:  w.logger.With(zap.String("job_id", item.JobID)),
	}
	jobCtx, cancel := w.jobContext(ctx)
	defer cancel()
	if !w.deps.Registry.Begin(item.JobID, cancel) {
		run.emit(progress.Event{Stage: progress.StageJobCanceled, Note: "canceled while queued"})
		run.logger.Info("skipping job canceled while queued")
		return
	}
	defer w.deps.Registry.Finish(item.JobID)

	jobCtx, span := w.deps.Tracer.Start(jobCtx, "report.generate", trace.WithAttributes(
		attribute.String("job.id", item.JobID),
		attribute.String("report.topic", item.Topic),
	))
	defer span.End()
	run.span = span

	if err := w.deps.Jobs.UpdateJobStatus(ctx, item.JobID, report.JobStatusRunning, ""); err != nil {
		run.logger.Error("update job status failed", zap.Error(err))
		return
	}
	run.begin(ctx)

	reportID, err := w.deps.Simulator.Run(jobCtx, func(step simulator.Step) {
		run.step(ctx, step)
	})
	if err != nil {
		run.abort(ctx, err)
		return
	}
	if err := run.finish(ctx, jobCtx, reportID); err != nil {
		run.abort(ctx, err)
	}
}

func (w *Worker) jobContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.cfg.JobTimeout > 0 {
		return context.WithTimeout(ctx, w.cfg.JobTimeout)
	}
	return context.WithCancel(ctx)
}

func (w *Worker) blobPath(reportID string) string {
	prefix := strings.Trim(w.cfg.BlobPrefix, "/")
	if prefix == "" {
		return reportID + ".md"
	}
	return fmt.Sprintf("%s/%s.md", prefix, reportID)
}

// jobRun carries the state of one generation through its lifecycle.
type jobRun struct {
	w       *Worker
	item    report.QueueItem
	eventID uuid.UUID
	tracker *phase.Tracker
	started time.Time
	logger  *zap.Logger
	span    trace.Span
}

func (r *jobRun) begin(ctx context.Context) {
	state := r.tracker.Start()
	r.saveState(ctx, state)
	r.emit(progress.Event{Stage: progress.StageJobStart, Topic: r.item.Topic})
	r.logger.Info("generation started", zap.String("topic", r.item.Topic))
}

func (r *jobRun) step(ctx context.Context, step simulator.Step) {
	state := r.tracker.Observe(step.Text)
	r.saveState(ctx, state)
	evt := progress.Event{
		Stage:     progress.StageStep,
		Step:      step.Text,
		StepIndex: step.Index,
		Phase:     state.Phase,
		Percent:   state.Percent,
	}
	r.emit(evt)
	r.span.AddEvent("step", trace.WithAttributes(
		attribute.Int("step.index", step.Index),
		attribute.String("step.text", step.Text),
		attribute.String("step.phase", state.Phase),
	))
	r.logger.Debug("generation step",
		zap.Int("index", step.Index),
		zap.String("step", step.Text),
		zap.String("phase", state.Phase),
		zap.Float64("percent", state.Percent),
	)
}

// finish persists the report. Writes use ctx so a late cancel cannot tear
// them; jobCtx only decides whether the job may still be marked succeeded.
func (r *jobRun) finish(ctx, jobCtx context.Context, reportID string) error {
	d := r.w.deps
	if errors.Is(jobCtx.Err(), context.Canceled) {
		return context.Canceled
	}
	finished := d.Clock.Now()
	rep := d.Drafter.Draft(reportID, r.item.Topic, r.item.Preferences, r.started, finished)

	content := []byte(rep.Content)
	digest, err := d.Hasher.Hash(content)
	if err != nil {
		return fmt.Errorf("hash content: %w", err)
	}
	uri, err := d.Blobs.PutObject(ctx, r.w.blobPath(reportID), r.w.cfg.ContentType, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	rep.ContentURI = uri
	rep.ContentHash = digest
	if err := d.Reports.SaveReport(ctx, rep); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	if err := d.Jobs.AttachReport(ctx, r.item.JobID, reportID); err != nil {
		return fmt.Errorf("attach report: %w", err)
	}
	if errors.Is(jobCtx.Err(), context.Canceled) {
		return context.Canceled
	}
	if err := r.publish(ctx, rep); err != nil {
		return err
	}
	err = d.Registry.Settle(jobCtx, r.item.JobID, func() error {
		if err := d.Jobs.UpdateJobStatus(ctx, r.item.JobID, report.JobStatusSucceeded, ""); err != nil {
			return fmt.Errorf("update job status: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.emit(progress.Event{
		Stage:    progress.StageJobDone,
		ReportID: reportID,
		Percent:  r.tracker.State().Percent,
		Dur:      finished.Sub(r.started),
	})
	r.span.SetAttributes(attribute.String("report.id", reportID))
	r.logger.Info("generation finished",
		zap.String("report_id", reportID),
		zap.String("blob_uri", uri),
		zap.Duration("elapsed", finished.Sub(r.started)),
	)
	return nil
}

func (r *jobRun) publish(ctx context.Context, rep report.Report) error {
	if r.w.cfg.Topic == "" || r.w.deps.Publisher == nil {
		return nil
	}
	payload := map[string]any{
		"report_id": rep.ID,
		"job_id":    r.item.JobID,
		"topic":     rep.Topic,
		"blob_uri":  rep.ContentURI,
		"timestamp": r.w.deps.Clock.Now().Format(time.RFC3339),
	}
	if _, err := r.w.deps.Publisher.Publish(ctx, r.w.cfg.Topic, payload); err != nil {
		return fmt.Errorf("publish payload: %w", err)
	}
	return nil
}

// abort handles a simulation that ended without an identifier.
func (r *jobRun) abort(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		r.cancel(ctx)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("generation timed out after %s", r.w.cfg.JobTimeout)
	}
	r.fail(ctx, err)
}

func (r *jobRun) cancel(ctx context.Context) {
	// shutdown may have canceled ctx; the status write still has to land
	writeCtx := context.WithoutCancel(ctx)
	r.tracker.Reset()
	if err := r.w.deps.Jobs.UpdateJobStatus(writeCtx, r.item.JobID, report.JobStatusCanceled, ""); err != nil {
		r.logger.Error("cancel job status update failed", zap.Error(err))
	}
	r.saveState(writeCtx, r.tracker.State())
	r.emit(progress.Event{Stage: progress.StageJobCanceled, Dur: r.elapsed()})
	r.span.SetAttributes(attribute.Bool("job.canceled", true))
	r.logger.Info("generation canceled")
}

func (r *jobRun) fail(ctx context.Context, err error) {
	writeCtx := context.WithoutCancel(ctx)
	r.tracker.Reset()
	if uerr := r.w.deps.Jobs.UpdateJobStatus(writeCtx, r.item.JobID, report.JobStatusFailed, err.Error()); uerr != nil {
		r.logger.Error("fail job status update failed", zap.Error(uerr))
	}
	r.saveState(writeCtx, r.tracker.State())
	r.emit(progress.Event{Stage: progress.StageJobError, Note: err.Error(), Dur: r.elapsed()})
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.logger.Error("generation failed", zap.Error(err))
}

func (r *jobRun) saveState(ctx context.Context, state report.GenerationState) {
	if err := r.w.deps.Jobs.UpdateJobState(ctx, r.item.JobID, state); err != nil {
		r.logger.Warn("update job state failed", zap.Error(err))
	}
}

func (r *jobRun) emit(evt progress.Event) {
	if r.w.deps.Emitter == nil {
		return
	}
	evt.JobID = r.eventID
	evt.TS = r.w.deps.Clock.Now()
	r.w.deps.Emitter.Emit(evt)
}

func (r *jobRun) elapsed() time.Duration {
	d := r.w.deps.Clock.Now().Sub(r.started)
	if d < 0 {
		return 0
	}
	return d
}

// EventID maps a job ID onto the UUID progress events carry. Non-UUID IDs get
// a stable name-based UUID.
func EventID(jobID string) uuid.UUID {
	if id, err := uuid.Parse(jobID); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("signal-news:job:"+jobID))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
