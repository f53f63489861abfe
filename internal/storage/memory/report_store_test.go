package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/signal-news/internal/report"
)

func TestReportStoreListsNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewReportStore(
		report.Report{ID: "report_1", Topic: "old", CreatedAt: base},
		report.Report{ID: "report_2", Topic: "newer", CreatedAt: base.Add(time.Hour)},
	)
	ctx := context.Background()
	require.NoError(t, store.SaveReport(ctx, report.Report{ID: "report_3", Topic: "newest", CreatedAt: base.Add(2 * time.Hour)}))

	all, err := store.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"report_3", "report_2", "report_1"}, ids(all))

	top, err := store.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
}

func TestReportStoreGetDelete(t *testing.T) {
	t.Parallel()

	store := NewReportStore()
	ctx := context.Background()
	require.Error(t, store.SaveReport(ctx, report.Report{}))
	require.NoError(t, store.SaveReport(ctx, report.Report{ID: "report_x", Content: "# x"}))

	got, err := store.GetReport(ctx, "report_x")
	require.NoError(t, err)
	require.Equal(t, "# x", got.Content)

	require.NoError(t, store.DeleteReport(ctx, "report_x"))
	require.True(t, errors.Is(store.DeleteReport(ctx, "report_x"), report.ErrNotFound))
	_, err = store.GetReport(ctx, "report_x")
	require.ErrorIs(t, err, report.ErrNotFound)
}

func ids(in []report.Summary) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.ID)
	}
	return out
}
