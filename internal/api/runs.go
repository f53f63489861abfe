package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/store"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
	runsTimeout     = 3 * time.Second
)

// RunHandler exposes read-only generation run history.
type RunHandler struct {
	repo    store.RunRepository
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunHandler wires the repository and logger.
func NewRunHandler(repo store.RunRepository, logger *zap.Logger) *RunHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunHandler{
		repo:    repo,
		timeout: runsTimeout,
		logger:  logger,
	}
}

// ListRuns handles GET /api/runs?status=&limit=&offset=. It returns
// {"runs": [...]} on success, 400 for invalid filters, 503 when no repository
// is configured, or 500 if the repository call fails.
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *store.RunStatus
	if raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
		st, ok := store.ParseRunStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		status = &st
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	runs, err := h.repo.ListRuns(ctx, status, limit, offset)
	if err != nil {
		h.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	out := make([]runDTO, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunDTO(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

// GetRun handles GET /api/runs/{job_id}: 400 for malformed IDs, 404 when the
// run is unknown.
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	run, err := h.repo.GetRun(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunDTO(run)})
}

// ListRunPhases handles GET /api/runs/{job_id}/phases.
func (h *RunHandler) ListRunPhases(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, http.StatusServiceUnavailable, "run repository unavailable")
		return
	}
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	marks, err := h.repo.ListRunPhases(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("list run phases failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list run phases")
		return
	}
	out := make([]phaseDTO, 0, len(marks))
	for _, m := range marks {
		out = append(out, phaseDTO{
			Phase:     m.Phase,
			Step:      m.Step,
			Percent:   m.Percent,
			ReachedAt: m.ReachedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"phases": out})
}

func chiJobID(r *http.Request) string {
	return chi.URLParam(r, "job_id")
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	raw := chiJobID(r)
	if raw == "" {
		return uuid.UUID{}, errors.New("job_id is required")
	}
	jobID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid job_id")
	}
	return jobID, nil
}

func toRunDTO(run store.Run) runDTO {
	return runDTO{
		JobID:      run.JobID.String(),
		Topic:      run.Topic,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		Status:     string(run.Status),
		Phase:      run.Phase,
		Percent:    run.Percent,
		ReportID:   run.ReportID,
		Error:      run.ErrorMessage,
	}
}

type runDTO struct {
	JobID      string     `json:"job_id"`
	Topic      string     `json:"topic"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Phase      string     `json:"phase,omitempty"`
	Percent    float64    `json:"percent"`
	ReportID   *string    `json:"report_id,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

type phaseDTO struct {
	Phase     string    `json:"phase"`
	Step      string    `json:"step"`
	Percent   float64   `json:"percent"`
	ReachedAt time.Time `json:"reached_at"`
}
