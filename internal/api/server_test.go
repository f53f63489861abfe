package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/signal-news/internal/catalog"
	"github.com/JakeFAU/signal-news/internal/clock/system"
	"github.com/JakeFAU/signal-news/internal/config"
	"github.com/JakeFAU/signal-news/internal/dispatcher"
	"github.com/JakeFAU/signal-news/internal/hash/sha256"
	iduuid "github.com/JakeFAU/signal-news/internal/id/uuid"
	"github.com/JakeFAU/signal-news/internal/policy/ratelimit"
	"github.com/JakeFAU/signal-news/internal/progress/sinks"
	queuememory "github.com/JakeFAU/signal-news/internal/queue/memory"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/storage/memory"
	"github.com/JakeFAU/signal-news/internal/worker"
)

type testEnv struct {
	server   *Server
	jobs     *memory.JobStore
	reports  *memory.ReportStore
	blobs    *memory.BlobStore
	runs     *memory.RunStore
	queue    *queuememory.Queue
	registry *worker.Registry
	feed     *sinks.FeedSink
	catalog  *catalog.Catalog
}

type envOption func(*config.Config, *Deps)

func withQueueCapacity(n int) envOption {
	return func(_ *config.Config, d *Deps) {
		q := queuememory.NewQueue(n)
		reg := worker.NewRegistry()
		d.Dispatcher = dispatcher.New(q, nil, reg)
	}
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	clock := system.New()
	env := &testEnv{
		jobs:     memory.NewJobStore(),
		reports:  memory.NewReportStore(),
		blobs:    memory.NewBlobStore(),
		runs:     memory.NewRunStore(),
		queue:    queuememory.NewQueue(8),
		registry: worker.NewRegistry(),
		feed:     sinks.NewFeedSink(8, zap.NewNop()),
		catalog:  catalog.New(catalog.Config{}, clock),
	}
	cfg := config.Config{
		Server:     config.ServerConfig{Port: 8080},
		Generation: config.GenerationConfig{Concurrency: 1, QueueDepth: 8, EnqueueTimeoutMs: 50},
	}
	deps := Deps{
		Catalog:    env.catalog,
		Jobs:       env.jobs,
		Reports:    env.reports,
		Blobs:      env.blobs,
		Hasher:     sha256.New(),
		Dispatcher: dispatcher.New(env.queue, nil, env.registry),
		JobIDs:     iduuid.NewUUIDGenerator(),
		Clock:      clock,
		Feed:       env.feed,
		Runs:       env.runs,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	env.server = NewServer(deps, cfg, zap.NewNop())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addJob(t *testing.T, id string, status report.JobStatus) {
	t.Helper()
	require.NoError(t, e.jobs.CreateJob(context.Background(), report.Job{
		ID:          id,
		Topic:       "Quantum computing",
		Preferences: report.DefaultPreferences(),
		Status:      status,
		Submitted:   time.Now(),
	}))
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_HealthAndReady(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/readyz", "").Code)

	failing := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Ready = func(context.Context) error { return errors.New("db down") }
	})
	require.Equal(t, http.StatusServiceUnavailable, failing.do(t, http.MethodGet, "/readyz", "").Code)
}

func TestServer_DailyNewsAndTopics(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/news/daily", "")
	require.Equal(t, http.StatusOK, rec.Code)
	news := decode[struct {
		News []report.NewsItem `json:"news"`
	}](t, rec)
	require.NotEmpty(t, news.News)
	for i := 1; i < len(news.News); i++ {
		require.True(t, news.News[i-1].PublishedAt.After(news.News[i].PublishedAt))
	}

	rec = env.do(t, http.MethodGet, "/api/topics/trending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	topics := decode[struct {
		Topics []report.TrendingTopic `json:"topics"`
	}](t, rec)
	require.NotEmpty(t, topics.Topics)
	require.NotEmpty(t, topics.Topics[0].Topic)
}

func TestServer_GenerateQueuesJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/reports/generate",
		`{"topic":"  AI in Healthcare ","preferences":{"focus":"Market Impact","depth":9}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decode[map[string]string](t, rec)
	jobID := body["jobId"]
	require.NotEmpty(t, jobID)

	job, err := env.jobs.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	require.Equal(t, report.JobStatusQueued, job.Status)
	require.Equal(t, "AI in Healthcare", job.Topic)
	require.Equal(t, report.FocusMarket, job.Preferences.Focus)
	require.Equal(t, report.MaxDepth, job.Preferences.Depth)
	require.Equal(t, report.ToneNeutral, job.Preferences.Tone)

	item, err := env.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, jobID, item.JobID)
	require.Equal(t, "AI in Healthcare", item.Topic)
}

func TestServer_GenerateValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "invalid json", body: "{nope", want: "invalid JSON"},
		{name: "empty topic", body: `{"topic":"   "}`, want: "topic is required"},
		{name: "long topic", body: `{"topic":"` + strings.Repeat("x", maxTopicLength+1) + `"}`, want: "too long"},
		{name: "unknown focus", body: `{"topic":"x","preferences":{"focus":"Gossip"}}`, want: "unknown focus"},
		{name: "unknown tone", body: `{"topic":"x","preferences":{"tone":"Angry"}}`, want: "unknown tone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/reports/generate", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
		})
	}
	require.Zero(t, env.queue.Len())
}

func TestServer_GenerateRateLimited(t *testing.T) {
	t.Parallel()

	limited := 0
	env := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Limiter = ratelimit.New(ratelimit.Config{RPS: 0.01, Burst: 1, OnLimited: func(string) { limited++ }})
	})
	body := `{"topic":"Robotics"}`
	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/api/reports/generate", body).Code)
	rec := env.do(t, http.MethodPost, "/api/reports/generate", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "1", rec.Header().Get("Retry-After"))
	require.Equal(t, 1, limited)

	other := env.do(t, http.MethodPost, "/api/reports/generate", body, "X-API-Key", "another-client")
	require.Equal(t, http.StatusAccepted, other.Code)
}

func TestServer_GenerateQueueFull(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, withQueueCapacity(0))
	rec := env.do(t, http.MethodPost, "/api/reports/generate", `{"topic":"Space"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "queue is full")
}

func TestServer_GetJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addJob(t, "job-1", report.JobStatusRunning)
	require.NoError(t, env.jobs.UpdateJobState(context.Background(), "job-1", report.GenerationState{
		IsGenerating: true,
		CurrentStep:  "Selecting best sources...",
		Phase:        "select",
		Percent:      60,
	}))

	rec := env.do(t, http.MethodGet, "/api/reports/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Job report.Job `json:"job"`
	}](t, rec)
	require.Equal(t, report.JobStatusRunning, body.Job.Status)
	require.True(t, body.Job.State.IsGenerating)
	require.Equal(t, 60.0, body.Job.State.Percent)

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/reports/jobs/missing", "").Code)
}

func TestServer_CancelQueuedJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addJob(t, "job-q", report.JobStatusQueued)

	rec := env.do(t, http.MethodPost, "/api/reports/jobs/job-q/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]string{"jobId": "job-q", "status": "canceled"}, decode[map[string]string](t, rec))

	job, err := env.jobs.GetJob(context.Background(), "job-q")
	require.NoError(t, err)
	require.Equal(t, report.JobStatusCanceled, job.Status)
	require.False(t, env.registry.Begin("job-q", func() {}), "queued cancel should be remembered")
}

func TestServer_CancelRunningJob(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addJob(t, "job-r", report.JobStatusRunning)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.True(t, env.registry.Begin("job-r", cancel))

	rec := env.do(t, http.MethodPost, "/api/reports/jobs/job-r/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Error(t, ctx.Err())
}

func TestServer_CancelFinishedJobConflicts(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.addJob(t, "job-done", report.JobStatusQueued)
	require.NoError(t, env.jobs.UpdateJobStatus(context.Background(), "job-done", report.JobStatusSucceeded, ""))

	rec := env.do(t, http.MethodPost, "/api/reports/jobs/job-done/cancel", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "succeeded")
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/reports/jobs/none/cancel", "").Code)
}

func TestServer_CancelReportsJobSettledMeanwhile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Jobs = &staleFirstRead{JobStore: d.Jobs, status: report.JobStatusRunning}
	})
	env.addJob(t, "job-late", report.JobStatusQueued)
	require.NoError(t, env.jobs.UpdateJobStatus(context.Background(), "job-late", report.JobStatusSucceeded, ""))

	rec := env.do(t, http.MethodPost, "/api/reports/jobs/job-late/cancel", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "succeeded")

	job, err := env.jobs.GetJob(context.Background(), "job-late")
	require.NoError(t, err)
	require.Equal(t, report.JobStatusSucceeded, job.Status)
}

func TestServer_GetReportHydratesContent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	uri, err := env.blobs.PutObject(ctx, "reports/report_a.md", "text/markdown", strings.NewReader("# Stored body"))
	require.NoError(t, err)
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_a", Topic: "A", ContentURI: uri, CreatedAt: time.Now()}))
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_b", Topic: "B", ContentURI: "memory://gone", CreatedAt: time.Now()}))

	rec := env.do(t, http.MethodGet, "/api/reports/report_a", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Report report.Report `json:"report"`
	}](t, rec)
	require.Equal(t, "# Stored body", body.Report.Content)
	require.Equal(t, "A", body.Report.Topic)

	rec = env.do(t, http.MethodGet, "/api/reports/report_b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[struct {
		Report report.Report `json:"report"`
	}](t, rec)
	require.Equal(t, catalog.Content(), body.Report.Content)

	rec = env.do(t, http.MethodGet, "/api/reports/report_missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "report not found")
}

func TestServer_GetReportContentETag(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	content := "# Markdown"
	digest, err := sha256.New().Hash([]byte(content))
	require.NoError(t, err)
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_c", Content: content, ContentHash: digest}))

	rec := env.do(t, http.MethodGet, "/api/reports/report_c/content", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, content, rec.Body.String())
	require.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	etag := rec.Header().Get("ETag")
	require.Equal(t, sha256.ETag(digest), etag)

	rec = env.do(t, http.MethodGet, "/api/reports/report_c/content", "", "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestServer_HistoryNewestFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_old", Topic: "old", CreatedAt: now.Add(-time.Hour)}))
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_new", Topic: "new", CreatedAt: now}))

	rec := env.do(t, http.MethodGet, "/api/reports/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Reports []report.Summary `json:"reports"`
	}](t, rec)
	require.Len(t, body.Reports, 2)
	require.Equal(t, "report_new", body.Reports[0].ID)

	rec = env.do(t, http.MethodGet, "/api/reports/history?limit=1", "")
	body = decode[struct {
		Reports []report.Summary `json:"reports"`
	}](t, rec)
	require.Len(t, body.Reports, 1)

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/reports/history?limit=-2", "").Code)
}

func TestServer_HistoryFallsBackToCannedData(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(_ *config.Config, d *Deps) {
		d.Reports = failingRepository{err: errors.New("db offline")}
	})
	rec := env.do(t, http.MethodGet, "/api/reports/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Reports []report.Summary `json:"reports"`
	}](t, rec)
	want := env.catalog.SeedHistory()
	require.Len(t, body.Reports, len(want))
	require.Equal(t, want[0].ID, body.Reports[0].ID)
}

func TestServer_DeleteReport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	require.NoError(t, env.reports.SaveReport(context.Background(), report.Report{ID: "report_d"}))

	rec := env.do(t, http.MethodDelete, "/api/reports/report_d", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"success": true, "message": "Report deleted successfully"}, decode[map[string]any](t, rec))

	rec = env.do(t, http.MethodDelete, "/api/reports/report_d", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, false, decode[map[string]any](t, rec)["success"])
}

func TestServer_DeleteReportRemovesContent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	uri, err := env.blobs.PutObject(ctx, "reports/report_e.md", "text/markdown", strings.NewReader("# Doomed"))
	require.NoError(t, err)
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_e", ContentURI: uri}))
	require.NoError(t, env.reports.SaveReport(ctx, report.Report{ID: "report_f", ContentURI: "memory://reports/already-gone.md"}))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/reports/report_e", "").Code)
	_, err = env.blobs.GetObject(ctx, uri)
	require.ErrorIs(t, err, report.ErrNotFound)

	// a missing blob does not fail the delete
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/reports/report_f", "").Code)
}

func TestServer_HydrateContentFallsBackOnlyForUnreadableBlobs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	uri, err := env.blobs.PutObject(ctx, "reports/report_h.md", "text/markdown", strings.NewReader("# Stored"))
	require.NoError(t, err)

	tests := []struct {
		name         string
		rep          report.Report
		wantContent  string
		wantFellBack bool
	}{
		{name: "inline content", rep: report.Report{ID: "r1", Content: "# Inline"}, wantContent: "# Inline"},
		{name: "stored blob", rep: report.Report{ID: "r2", ContentURI: uri}, wantContent: "# Stored"},
		{name: "seeded without blob", rep: report.Report{ID: "r3"}, wantContent: catalog.Content()},
		{name: "unreadable blob", rep: report.Report{ID: "r4", ContentURI: "memory://missing.md", ContentHash: "abc"}, wantContent: catalog.Content(), wantFellBack: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fellBack := env.server.hydrateContent(ctx, tt.rep)
			require.Equal(t, tt.wantContent, got.Content)
			require.Equal(t, tt.wantFellBack, fellBack)
			if fellBack {
				require.Empty(t, got.ContentHash)
			}
		})
	}
}

func TestServer_APIKeyRequired(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(c *config.Config, _ *Deps) {
		c.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	})
	require.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/topics/trending", "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/topics/trending", "", "X-API-Key", "secret").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/topics/trending?api_key=secret", "").Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestServer_RequestIDEchoed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", "X-Request-ID", "abc-123")
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	require.NotEmpty(t, env.do(t, http.MethodGet, "/healthz", "").Header().Get("X-Request-ID"))
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", "")
	rec := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

type failingRepository struct {
	err error
}

func (f failingRepository) SaveReport(context.Context, report.Report) error { return f.err }

func (f failingRepository) GetReport(context.Context, string) (report.Report, error) {
	return report.Report{}, f.err
}

func (f failingRepository) ListReports(context.Context, int) ([]report.Summary, error) {
	return nil, f.err
}

func (f failingRepository) DeleteReport(context.Context, string) error { return f.err }

// staleFirstRead reports status on the first GetJob, as if the job settled
// right after the handler loaded it.
type staleFirstRead struct {
	report.JobStore
	status report.JobStatus
	served atomic.Bool
}

func (s *staleFirstRead) GetJob(ctx context.Context, jobID string) (report.Job, error) {
	job, err := s.JobStore.GetJob(ctx, jobID)
	if err == nil && s.served.CompareAndSwap(false, true) {
		job.Status = s.status
	}
	return job, err
}
