package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/signal-news/internal/report"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDailyNewsStampsRelativeToClock(t *testing.T) {
	t.Parallel()

	c := New(Config{}, fixedClock{now: testNow})
	news, err := c.DailyNews(context.Background())
	require.NoError(t, err)
	require.Len(t, news, 5)
	for i, item := range news {
		require.Equal(t, testNow.Add(-time.Duration(2*(i+1))*time.Hour), item.PublishedAt)
	}
	require.Equal(t, "AI Breakthrough in Medical Diagnosis", news[0].Title)

	news[0].Title = "mutated"
	again, err := c.DailyNews(context.Background())
	require.NoError(t, err)
	require.Equal(t, "AI Breakthrough in Medical Diagnosis", again[0].Title)
}

func TestTrendingTopics(t *testing.T) {
	t.Parallel()

	c := New(Config{}, fixedClock{now: testNow})
	topics, err := c.TrendingTopics(context.Background())
	require.NoError(t, err)
	require.Len(t, topics, 8)
	want := report.TrendingTopic{
		Title:       "Climate Change",
		Description: "Environmental policies, climate action, and sustainability initiatives",
		Topic:       "climate change policies and environmental action 2024",
		Icon:        "leaf",
	}
	if diff := cmp.Diff(want, topics[1]); diff != "" {
		t.Fatalf("unexpected topic (-want +got):\n%s", diff)
	}
}

func TestLatencyHonorsContext(t *testing.T) {
	t.Parallel()

	c := New(Config{Latency: time.Hour}, fixedClock{now: testNow})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.DailyNews(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDraftFillsCannedMaterial(t *testing.T) {
	t.Parallel()

	c := New(Config{}, fixedClock{now: testNow})
	prefs := report.Preferences{Focus: report.FocusExpert, Depth: 2, Tone: report.ToneOptimistic}
	started := testNow.Add(-7 * time.Second)
	r := c.Draft("report_x", "fusion power", prefs, started, testNow)

	require.Equal(t, "report_x", r.ID)
	require.Equal(t, "fusion power", r.Topic)
	require.Equal(t, prefs, r.Preferences)
	require.True(t, strings.HasPrefix(r.Content, "# Artificial Intelligence in Healthcare 2024"))
	require.Equal(t, 7, r.Stats.ProcessingTime)
	require.Equal(t, testNow, r.Stats.GeneratedAt)
	require.Len(t, r.Stats.SearchQueries, 5)
	require.Len(t, r.Sources, 5)
	require.Len(t, r.RelatedTopics, 6)
}

func TestSeedHistoryNewestFirst(t *testing.T) {
	t.Parallel()

	c := New(Config{}, fixedClock{now: testNow})
	want := []report.Summary{
		{
			ID:          "report_1",
			Topic:       "Artificial Intelligence in Healthcare 2024",
			CreatedAt:   testNow.Add(-24 * time.Hour),
			Preferences: report.Preferences{Focus: report.FocusTechnical, Depth: 4, Tone: report.ToneAnalytical},
		},
		{
			ID:          "report_2",
			Topic:       "Climate Change Policies and Environmental Action",
			CreatedAt:   testNow.Add(-48 * time.Hour),
			Preferences: report.Preferences{Focus: report.FocusGeneral, Depth: 3, Tone: report.ToneNeutral},
		},
		{
			ID:          "report_3",
			Topic:       "Cryptocurrency Market Trends and Regulations",
			CreatedAt:   testNow.Add(-72 * time.Hour),
			Preferences: report.Preferences{Focus: report.FocusMarket, Depth: 5, Tone: report.ToneCritical},
		},
	}
	if diff := cmp.Diff(want, c.SeedHistory()); diff != "" {
		t.Fatalf("unexpected seed history (-want +got):\n%s", diff)
	}
}
