package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/signal-news/internal/report"
)

func openMemory(t *testing.T) *ReportStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReportStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	ctx := context.Background()
	created := time.Date(2026, 2, 14, 10, 30, 0, 123456000, time.UTC)
	in := report.Report{
		ID:          "report_1",
		Topic:       "Artificial Intelligence in Healthcare",
		Preferences: report.Preferences{Focus: report.FocusTechnical, Depth: 4, Tone: report.ToneAnalytical},
		Stats: report.Stats{
			SearchQueries:   []string{"AI healthcare diagnostics"},
			SourcesAnalyzed: 47,
			SourcesSelected: 12,
			ProcessingTime:  7,
			GeneratedAt:     created,
		},
		Sources:       []report.Source{{Title: "Nature Medicine", URL: "https://example.com/n", Domain: "nature.com"}},
		RelatedTopics: []string{"Medical imaging"},
		ContentURI:    "memory://reports/report_1.md",
		ContentHash:   "deadbeef",
		CreatedAt:     created,
	}
	require.NoError(t, s.SaveReport(ctx, in))

	got, err := s.GetReport(ctx, "report_1")
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestReportStoreHistoryAndDelete(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"report_a", "report_b", "report_c"} {
		require.NoError(t, s.SaveReport(ctx, report.Report{
			ID:          id,
			Topic:       id,
			Preferences: report.DefaultPreferences(),
			CreatedAt:   base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	all, err := s.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "report_c", all[0].ID)
	require.Equal(t, report.FocusGeneral, all[0].Preferences.Focus)

	two, err := s.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)

	require.NoError(t, s.DeleteReport(ctx, "report_b"))
	require.ErrorIs(t, s.DeleteReport(ctx, "report_b"), report.ErrNotFound)
	_, err = s.GetReport(ctx, "report_b")
	require.ErrorIs(t, err, report.ErrNotFound)
}

func TestOpenFileDatabase(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "reports.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveReport(context.Background(), report.Report{ID: "r", Topic: "t", CreatedAt: time.Now()}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	_, err = reopened.GetReport(context.Background(), "r")
	require.NoError(t, err)
}
