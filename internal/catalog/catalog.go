// Package catalog holds the canned payloads the service returns in place of
// real news retrieval and report writing: the daily feed, trending topics,
// the pre-authored report body and the seed history.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/JakeFAU/signal-news/internal/report"
)

//go:embed healthcare_ai.md
var reportContent string

// Config sets the artificial latency applied before canned responses.
type Config struct {
	Latency       time.Duration
	ReportLatency time.Duration
}

// Catalog serves canned payloads stamped relative to the clock.
type Catalog struct {
	cfg   Config
	clock report.Clock
}

// New creates a Catalog.
func New(cfg Config, clock report.Clock) *Catalog {
	return &Catalog{cfg: cfg, clock: clock}
}

// Latency is the delay applied to feed, topic, history and delete calls.
func (c *Catalog) Latency() time.Duration {
	return c.cfg.Latency
}

// ReportLatency is the delay applied to single-report lookups.
func (c *Catalog) ReportLatency() time.Duration {
	return c.cfg.ReportLatency
}

// Delay waits d or until ctx is done.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("catalog delay: %w", ctx.Err())
	}
}

// DailyNews returns the news feed, newest first, published in two-hour steps before now.
func (c *Catalog) DailyNews(ctx context.Context) ([]report.NewsItem, error) {
	if err := Delay(ctx, c.cfg.Latency); err != nil {
		return nil, err
	}
	now := c.clock.Now()
	out := make([]report.NewsItem, len(dailyNews))
	for i, item := range dailyNews {
		item.PublishedAt = now.Add(-time.Duration(2*(i+1)) * time.Hour)
		out[i] = item
	}
	return out, nil
}

// TrendingTopics returns the suggested topics.
func (c *Catalog) TrendingTopics(ctx context.Context) ([]report.TrendingTopic, error) {
	if err := Delay(ctx, c.cfg.Latency); err != nil {
		return nil, err
	}
	out := make([]report.TrendingTopic, len(trendingTopics))
	copy(out, trendingTopics)
	return out, nil
}

// Content is the pre-authored report body in markdown.
func Content() string {
	return reportContent
}

// Draft assembles a report for topic from the canned material. ProcessingTime
// is the whole seconds between started and finished.
func (c *Catalog) Draft(id, topic string, prefs report.Preferences, started, finished time.Time) report.Report {
	return report.Report{
		ID:          id,
		Topic:       topic,
		Content:     reportContent,
		Preferences: prefs,
		Stats: report.Stats{
			SearchQueries:   append([]string(nil), searchQueries...),
			SourcesAnalyzed: 47,
			SourcesSelected: 12,
			ProcessingTime:  int(finished.Sub(started).Seconds()),
			GeneratedAt:     finished,
		},
		Sources:       append([]report.Source(nil), sources...),
		RelatedTopics: append([]string(nil), relatedTopics...),
		CreatedAt:     finished,
	}
}

// Seed returns the reports a fresh history starts with, newest first, a day apart.
func (c *Catalog) Seed() []report.Report {
	now := c.clock.Now()
	out := make([]report.Report, 0, len(seedHistory))
	for i, s := range seedHistory {
		created := now.Add(-time.Duration(24*(i+1)) * time.Hour)
		r := c.Draft(s.ID, s.Topic, s.Preferences, created.Add(-23*time.Second), created)
		out = append(out, r)
	}
	return out
}

// SeedHistory returns Seed projected to summaries.
func (c *Catalog) SeedHistory() []report.Summary {
	seed := c.Seed()
	out := make([]report.Summary, len(seed))
	for i, r := range seed {
		out[i] = r.Summarize()
	}
	return out
}
