// Package sqlite stores report metadata in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/signal-news/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id             TEXT PRIMARY KEY,
	topic          TEXT NOT NULL,
	preferences    TEXT NOT NULL,
	stats          TEXT NOT NULL,
	sources        TEXT NOT NULL,
	related_topics TEXT NOT NULL,
	content_uri    TEXT NOT NULL DEFAULT '',
	content_hash   TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS reports_created_at_idx ON reports (created_at DESC);
`

// ReportStore implements report.Repository on SQLite.
type ReportStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" keeps everything in process.
func Open(path string) (*ReportStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &ReportStore{db: db}, nil
}

// Close releases the database handle.
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// SaveReport inserts or replaces a report row. Content stays in the blob store.
func (s *ReportStore) SaveReport(ctx context.Context, r report.Report) error {
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	cols, err := marshalColumns(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports
			(id, topic, preferences, stats, sources, related_topics, content_uri, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Topic, cols[0], cols[1], cols[2], cols[3],
		r.ContentURI, r.ContentHash, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport loads a report row; Content is left empty.
func (s *ReportStore) GetReport(ctx context.Context, id string) (report.Report, error) {
	var (
		r       report.Report
		cols    [4]string
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, topic, preferences, stats, sources, related_topics, content_uri, content_hash, created_at
		FROM reports WHERE id = ?`, id,
	).Scan(&r.ID, &r.Topic, &cols[0], &cols[1], &cols[2], &cols[3], &r.ContentURI, &r.ContentHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, fmt.Errorf("report %s: %w", id, report.ErrNotFound)
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("get report: %w", err)
	}
	targets := []any{&r.Preferences, &r.Stats, &r.Sources, &r.RelatedTopics}
	for i, raw := range cols {
		if err := json.Unmarshal([]byte(raw), targets[i]); err != nil {
			return report.Report{}, fmt.Errorf("decode report column %d: %w", i, err)
		}
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return report.Report{}, err
	}
	return r, nil
}

// ListReports returns summaries newest first. A limit <= 0 returns all rows.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]report.Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, created_at, preferences
		FROM reports
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []report.Summary{}
	for rows.Next() {
		var (
			sum            report.Summary
			created, prefs string
		)
		if err := rows.Scan(&sum.ID, &sum.Topic, &created, &prefs); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(prefs), &sum.Preferences); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// DeleteReport removes a report row or returns report.ErrNotFound.
func (s *ReportStore) DeleteReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("report %s: %w", id, report.ErrNotFound)
	}
	return nil
}

func marshalColumns(r report.Report) ([4]string, error) {
	var out [4]string
	sources := r.Sources
	if sources == nil {
		sources = []report.Source{}
	}
	related := r.RelatedTopics
	if related == nil {
		related = []string{}
	}
	for i, v := range []any{r.Preferences, r.Stats, sources, related} {
		raw, err := json.Marshal(v)
		if err != nil {
			return out, fmt.Errorf("encode report column %d: %w", i, err)
		}
		out[i] = string(raw)
	}
	return out, nil
}

// timestamps are stored as fixed-width UTC text so ORDER BY sorts them.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
