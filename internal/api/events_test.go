package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/signal-news/internal/config"
	"github.com/JakeFAU/signal-news/internal/progress"
	"github.com/JakeFAU/signal-news/internal/report"
	"github.com/JakeFAU/signal-news/internal/worker"
)

type streamResult struct {
	body        string
	contentType string
	err         error
}

func TestStreamJob_RelaysProgressUntilDone(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID := uuid.NewString()
	env.addJob(t, jobID, report.JobStatusRunning)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	results := make(chan streamResult, 1)
	go func() {
		resp, err := ts.Client().Get(ts.URL + "/api/reports/jobs/" + jobID + "/events")
		if err != nil {
			results <- streamResult{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		results <- streamResult{body: string(b), contentType: resp.Header.Get("Content-Type"), err: err}
	}()

	eid := worker.EventID(jobID)
	require.Eventually(t, func() bool { return env.feed.Subscribers(eid) == 1 }, 2*time.Second, 5*time.Millisecond)
	now := time.Now()
	require.NoError(t, env.feed.Consume(context.Background(), []progress.Event{
		{JobID: eid, TS: now, Stage: progress.StageStep, Step: "Refining search query...", Phase: "search", Percent: 20},
		{JobID: eid, TS: now, Stage: progress.StageStep, Step: "Found articles from sources", Percent: 20, StepIndex: 1},
		{JobID: eid, TS: now, Stage: progress.StageJobDone, ReportID: "report_x", Percent: 100},
	}))

	var res streamResult
	select {
	case res = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after the terminal event")
	}
	require.NoError(t, res.err)
	require.Equal(t, "text/event-stream", res.contentType)
	require.Contains(t, res.body, "event: state\n")
	require.Equal(t, 2, strings.Count(res.body, "event: progress\n"))
	require.Contains(t, res.body, `"phase":"search"`)
	require.Contains(t, res.body, `"percent":20`)
	require.Contains(t, res.body, `"reportId":"report_x"`)
	require.Less(t, strings.Index(res.body, "event: state"), strings.Index(res.body, "event: progress"))
	require.Less(t, strings.Index(res.body, "event: progress"), strings.Index(res.body, "event: done"))
	require.Zero(t, env.feed.Subscribers(eid))
}

func TestStreamJob_FinishedJobEndsImmediately(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID := uuid.NewString()
	env.addJob(t, jobID, report.JobStatusRunning)
	require.NoError(t, env.jobs.UpdateJobStatus(context.Background(), jobID, report.JobStatusFailed, "blob store offline"))

	rec := env.do(t, http.MethodGet, "/api/reports/jobs/"+jobID+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "event: state\n")
	require.Contains(t, body, "event: error\n")
	require.Contains(t, body, "blob store offline")
	require.Zero(t, env.feed.Subscribers(worker.EventID(jobID)))
}

func TestStreamJob_ClientDisconnectUnsubscribes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	jobID := uuid.NewString()
	env.addJob(t, jobID, report.JobStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/reports/jobs/"+jobID+"/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		env.server.Handler().ServeHTTP(rec, req)
		close(done)
	}()

	eid := worker.EventID(jobID)
	require.Eventually(t, func() bool { return env.feed.Subscribers(eid) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
	require.Zero(t, env.feed.Subscribers(eid))
}

func TestStreamJob_Errors(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/reports/jobs/unknown/events", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	disabled := newTestEnv(t, func(_ *config.Config, d *Deps) { d.Feed = nil })
	rec = disabled.do(t, http.MethodGet, "/api/reports/jobs/any/events", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEventFrameNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage progress.Stage
		want  string
	}{
		{progress.StageJobStart, sseProgress},
		{progress.StageStep, sseProgress},
		{progress.StageJobDone, sseDone},
		{progress.StageJobError, sseError},
		{progress.StageJobCanceled, sseCanceled},
	}
	for _, tt := range tests {
		name, frame := eventFrame("job", progress.Event{Stage: tt.stage, Dur: 1500 * time.Millisecond})
		require.Equal(t, tt.want, name, tt.stage)
		require.Equal(t, "job", frame.JobID)
		require.EqualValues(t, 1500, frame.ElapsedMs)
	}
}
