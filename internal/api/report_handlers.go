package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/catalog"
	"github.com/JakeFAU/signal-news/internal/hash/sha256"
	"github.com/JakeFAU/signal-news/internal/metrics"
	"github.com/JakeFAU/signal-news/internal/report"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxTopicLength      = 500
	defaultEnqueueWait  = 5 * time.Second
)

type generateRequest struct {
	Topic       string             `json:"topic"`
	Preferences report.Preferences `json:"preferences"`
}

func (s *Server) dailyNews(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Catalog.DailyNews(r.Context())
	if err != nil {
		s.logger.Warn("daily news failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "news unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"news": items})
}

func (s *Server) trendingTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := s.deps.Catalog.TrendingTopics(r.Context())
	if err != nil {
		s.logger.Warn("trending topics failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "topics unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics})
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Limiter != nil && !s.deps.Limiter.Allow(clientKey(r)) {
		metrics.ObserveSubmission("rate_limited")
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many report requests")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.ObserveSubmission("invalid")
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		metrics.ObserveSubmission("invalid")
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	if len(topic) > maxTopicLength {
		metrics.ObserveSubmission("invalid")
		writeError(w, http.StatusBadRequest, "topic is too long")
		return
	}
	prefs, err := req.Preferences.Normalize()
	if err != nil {
		metrics.ObserveSubmission("invalid")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.enqueueJob(r.Context(), topic, prefs)
	if err != nil {
		if errors.Is(err, errQueueUnavailable) {
			metrics.ObserveSubmission("queue_full")
			writeError(w, http.StatusServiceUnavailable, "generation queue is full, try again shortly")
			return
		}
		metrics.ObserveSubmission("error")
		s.logger.Error("submit generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit report generation")
		return
	}
	metrics.ObserveSubmission("accepted")
	if depth := s.deps.Dispatcher.Depth(); depth >= 0 {
		metrics.SetQueueDepth(depth)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

var errQueueUnavailable = errors.New("generation queue unavailable")

func (s *Server) enqueueJob(ctx context.Context, topic string, prefs report.Preferences) (string, error) {
	jobID, err := s.deps.JobIDs.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	now := s.deps.Clock.Now()
	job := report.Job{
		ID:          jobID,
		Topic:       topic,
		Preferences: prefs,
		Status:      report.JobStatusQueued,
		Submitted:   now,
	}
	if err := s.deps.Jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	wait := s.cfg.EnqueueTimeout()
	if wait <= 0 {
		wait = defaultEnqueueWait
	}
	queueCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	item := report.QueueItem{
		JobID:       jobID,
		Topic:       topic,
		Preferences: prefs,
		Attempt:     1,
		Submitted:   now.Unix(),
	}
	if err := s.deps.Dispatcher.Enqueue(queueCtx, item); err != nil {
		if uerr := s.deps.Jobs.UpdateJobStatus(context.WithoutCancel(ctx), jobID, report.JobStatusFailed, "queue unavailable"); uerr != nil {
			s.logger.Warn("mark unqueued job failed", zap.String("job_id", jobID), zap.Error(uerr))
		}
		s.logger.Warn("enqueue generation failed", zap.String("job_id", jobID), zap.Error(err))
		return "", errQueueUnavailable
	}
	s.logger.Info("generation queued", zap.String("job_id", jobID), zap.String("topic", topic))
	return jobID, nil
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	if job.Status.Terminal() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"jobId":  job.ID,
			"status": string(job.Status),
			"error":  "job already finished",
		})
		return
	}
	running := s.deps.Dispatcher.Cancel(job.ID)
	metrics.ObserveCancel(running)
	if !running {
		// a worker may have settled the job since it was loaded
		if current, err := s.deps.Jobs.GetJob(r.Context(), job.ID); err == nil && current.Status.Terminal() {
			writeJSON(w, http.StatusConflict, map[string]string{
				"jobId":  current.ID,
				"status": string(current.Status),
				"error":  "job already finished",
			})
			return
		}
		// the worker that dequeues it will skip it
		if err := s.deps.Jobs.UpdateJobStatus(r.Context(), job.ID, report.JobStatusCanceled, ""); err != nil {
			s.logger.Error("cancel queued job failed", zap.String("job_id", job.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to cancel job")
			return
		}
	}
	s.logger.Info("generation cancel requested", zap.String("job_id", job.ID), zap.Bool("running", running))
	writeJSON(w, http.StatusOK, map[string]string{"jobId": job.ID, "status": string(report.JobStatusCanceled)})
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (report.Job, bool) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.deps.Jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return report.Job{}, false
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return report.Job{}, false
	}
	return job, true
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if err := catalog.Delay(r.Context(), s.deps.Catalog.ReportLatency()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "request canceled")
		return
	}
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": rep})
}

func (s *Server) getReportContent(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.loadReport(w, r)
	if !ok {
		return
	}
	digest := rep.ContentHash
	if digest == "" && s.deps.Hasher != nil {
		h, err := s.deps.Hasher.Hash([]byte(rep.Content))
		if err != nil {
			s.logger.Warn("hash report content failed", zap.String("report_id", rep.ID), zap.Error(err))
		}
		digest = h
	}
	if digest != "" {
		etag := sha256.ETag(digest)
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(rep.Content)); err != nil {
		s.logger.Warn("write report content failed", zap.Error(err))
	}
}

// loadReport fetches a report and fills its content from the blob store,
// falling back to the canned body when the blob cannot be read.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) (report.Report, bool) {
	id := chi.URLParam(r, "id")
	rep, err := s.deps.Reports.GetReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return report.Report{}, false
		}
		s.logger.Error("get report failed", zap.String("report_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return report.Report{}, false
	}
	rep, fellBack := s.hydrateContent(r.Context(), rep)
	if fellBack {
		metrics.ObserveFallback("content")
	}
	return rep, true
}

// hydrateContent fills rep.Content. Reports without a blob (seeded history)
// get the canned body as their content; fellBack is true only when a stored
// blob could not be read.
func (s *Server) hydrateContent(ctx context.Context, rep report.Report) (out report.Report, fellBack bool) {
	if rep.Content != "" {
		return rep, false
	}
	if rep.ContentURI == "" || s.deps.Blobs == nil {
		rep.Content = catalog.Content()
		return rep, false
	}
	data, err := s.deps.Blobs.GetObject(ctx, rep.ContentURI)
	if err == nil {
		rep.Content = string(data)
		return rep, false
	}
	s.logger.Warn("read report content failed, serving canned body",
		zap.String("report_id", rep.ID),
		zap.String("blob_uri", rep.ContentURI),
		zap.Error(err),
	)
	rep.Content = catalog.Content()
	rep.ContentHash = ""
	return rep, true
}

func (s *Server) reportHistory(w http.ResponseWriter, r *http.Request) {
	limit, _, err := parseLimitOffset(r, defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := catalog.Delay(r.Context(), s.deps.Catalog.Latency()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "request canceled")
		return
	}
	reports, err := s.deps.Reports.ListReports(r.Context(), limit)
	if err != nil {
		s.logger.Warn("list reports failed, serving canned history", zap.Error(err))
		metrics.ObserveFallback("history")
		reports = s.deps.Catalog.SeedHistory()
		if len(reports) > limit {
			reports = reports[:limit]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := catalog.Delay(r.Context(), s.deps.Catalog.Latency()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "request canceled")
		return
	}
	rep, err := s.deps.Reports.GetReport(r.Context(), id)
	if err == nil {
		err = s.deps.Reports.DeleteReport(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Report not found"})
			return
		}
		s.logger.Error("delete report failed", zap.String("report_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "Failed to delete report"})
		return
	}
	s.deleteContent(r.Context(), rep)
	s.logger.Info("report deleted", zap.String("report_id", id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Report deleted successfully"})
}

// deleteContent removes a deleted report's blob. Failures are logged; the
// metadata is already gone and the request still succeeds.
func (s *Server) deleteContent(ctx context.Context, rep report.Report) {
	if rep.ContentURI == "" || s.deps.Blobs == nil {
		return
	}
	err := s.deps.Blobs.DeleteObject(ctx, rep.ContentURI)
	switch {
	case err == nil:
	case errors.Is(err, report.ErrNotFound):
		s.logger.Debug("report content already gone", zap.String("report_id", rep.ID), zap.String("blob_uri", rep.ContentURI))
	default:
		s.logger.Warn("delete report content failed",
			zap.String("report_id", rep.ID),
			zap.String("blob_uri", rep.ContentURI),
			zap.Error(err),
		)
	}
}

// clientKey identifies the caller for rate limiting: the API key when one is
// sent, otherwise the remote host.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
