package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/catalog"
	"github.com/JakeFAU/signal-news/internal/config"
	"github.com/JakeFAU/signal-news/internal/dispatcher"
	"github.com/JakeFAU/signal-news/internal/metrics"
	"github.com/JakeFAU/signal-news/internal/policy/ratelimit"
	"github.com/JakeFAU/signal-news/internal/progress/sinks"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/store"
	"github.com/JakeFAU/signal-news/internal/telemetry"
)

const (
	requestTimeout    = 60 * time.Second
	heartbeatInterval = 15 * time.Second
)

// Deps bundles the collaborators the HTTP layer serves from. Limiter, Feed,
// Runs and Ready may be nil.
type Deps struct {
	Catalog    *catalog.Catalog
	Jobs       report.JobStore
	Reports    report.Repository
	Blobs      report.BlobStore
	Hasher     report.Hasher
	Dispatcher *dispatcher.Dispatcher
	JobIDs     report.IDGenerator
	Clock      report.Clock
	Limiter    *ratelimit.Limiter
	Feed       *sinks.FeedSink
	Runs       store.RunRepository
	// Ready reports whether downstream dependencies can serve traffic.
	Ready func(ctx context.Context) error
}

// Server wires HTTP handlers to the dispatcher and stores.
type Server struct {
	router    chi.Router
	deps      Deps
	cfg       config.Config
	logger    *zap.Logger
	heartbeat time.Duration
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:      deps,
		cfg:       cfg,
		logger:    logger.Named("api"),
		heartbeat: heartbeatInterval,
	}
	runs := NewRunHandler(deps.Runs, s.logger)

	r := chi.NewRouter()
	r.Use(telemetry.Middleware("signal-news-api"))
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(requestTimeout))
			r.Get("/news/daily", s.dailyNews)
			r.Get("/topics/trending", s.trendingTopics)
			r.Get("/runs", runs.ListRuns)
			r.Get("/runs/{job_id}", runs.GetRun)
			r.Get("/runs/{job_id}/phases", runs.ListRunPhases)
		})
		r.Route("/reports", func(r chi.Router) {
			// Streams stay open past the request timeout.
			r.Get("/jobs/{job_id}/events", s.streamJob)

			r.Group(func(r chi.Router) {
				r.Use(timeoutMiddleware(requestTimeout))
				r.Post("/generate", s.generateReport)
				r.Get("/history", s.reportHistory)
				r.Get("/jobs/{job_id}", s.getJob)
				r.Post("/jobs/{job_id}/cancel", s.cancelJob)
				r.Get("/{id}", s.getReport)
				r.Get("/{id}/content", s.getReportContent)
				r.Delete("/{id}", s.deleteReport)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", rec),
					zap.String("request_id", requestID(r.Context())),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
