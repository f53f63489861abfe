package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/signal-news/internal/report"
)

// maxHistory caps ListReports when the caller asks for everything.
const maxHistory = 1000

// ReportStore implements report.Repository on Postgres. Content lives in the
// blob store; rows keep its URI and digest.
type ReportStore struct {
	pool Pool
}

// NewReportStore wraps an open pool.
func NewReportStore(pool Pool) (*ReportStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ReportStore{pool: pool}, nil
}

// SaveReport inserts or replaces a report row.
func (s *ReportStore) SaveReport(ctx context.Context, r report.Report) error {
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	doc, err := encodeReport(r)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO reports (id, topic, preferences, stats, sources, related_topics, content_uri, content_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			topic = EXCLUDED.topic,
			preferences = EXCLUDED.preferences,
			stats = EXCLUDED.stats,
			sources = EXCLUDED.sources,
			related_topics = EXCLUDED.related_topics,
			content_uri = EXCLUDED.content_uri,
			content_hash = EXCLUDED.content_hash;
	`
	_, err = s.pool.Exec(ctx, query,
		r.ID, r.Topic, doc.preferences, doc.stats, doc.sources, doc.related,
		r.ContentURI, r.ContentHash, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport loads a report row; Content is left empty.
func (s *ReportStore) GetReport(ctx context.Context, id string) (report.Report, error) {
	query := `
		SELECT id, topic, preferences, stats, sources, related_topics, content_uri, content_hash, created_at
		FROM reports WHERE id = $1;
	`
	var (
		r   report.Report
		doc reportDoc
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.Topic, &doc.preferences, &doc.stats, &doc.sources, &doc.related,
		&r.ContentURI, &r.ContentHash, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return report.Report{}, fmt.Errorf("report %s: %w", id, report.ErrNotFound)
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("get report: %w", err)
	}
	if err := doc.decodeInto(&r); err != nil {
		return report.Report{}, err
	}
	return r, nil
}

// ListReports returns summaries newest first.
func (s *ReportStore) ListReports(ctx context.Context, limit int) ([]report.Summary, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	query := `
		SELECT id, topic, created_at, preferences
		FROM reports
		ORDER BY created_at DESC, id DESC
		LIMIT $1;
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	out := []report.Summary{}
	for rows.Next() {
		var (
			sum   report.Summary
			prefs []byte
		)
		if err := rows.Scan(&sum.ID, &sum.Topic, &sum.CreatedAt, &prefs); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		if err := json.Unmarshal(prefs, &sum.Preferences); err != nil {
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
	tag, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("report %s: %w", id, report.ErrNotFound)
	}
	return nil
}

type reportDoc struct {
	preferences []byte
	stats       []byte
	sources     []byte
	related     []byte
}

func encodeReport(r report.Report) (reportDoc, error) {
	var (
		doc reportDoc
		err error
	)
	if doc.preferences, err = json.Marshal(r.Preferences); err != nil {
		return doc, fmt.Errorf("marshal preferences: %w", err)
	}
	if doc.stats, err = json.Marshal(r.Stats); err != nil {
		return doc, fmt.Errorf("marshal stats: %w", err)
	}
	if doc.sources, err = json.Marshal(nonNil(r.Sources)); err != nil {
		return doc, fmt.Errorf("marshal sources: %w", err)
	}
	if doc.related, err = json.Marshal(nonNil(r.RelatedTopics)); err != nil {
		return doc, fmt.Errorf("marshal related topics: %w", err)
	}
	return doc, nil
}

func (d reportDoc) decodeInto(r *report.Report) error {
	for _, f := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"preferences", d.preferences, &r.Preferences},
		{"stats", d.stats, &r.Stats},
		{"sources", d.sources, &r.Sources},
		{"related topics", d.related, &r.RelatedTopics},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return fmt.Errorf("decode %s: %w", f.name, err)
		}
	}
	return nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
