package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/JakeFAU/signal-news/internal/report"
)

// ReportStore provides an in-memory report.Repository.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]report.Report
}

// NewReportStore constructs a ReportStore holding seed.
func NewReportStore(seed ...report.Report) *ReportStore {
	s := &ReportStore{reports: make(map[string]report.Report, len(seed))}
	for _, r := range seed {
		s.reports[r.ID] = r
	}
	return s
}

// SaveReport inserts or replaces r.
func (s *ReportStore) SaveReport(_ context.Context, r report.Report) error {
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
	return nil
}

// GetReport fetches a report by ID.
func (s *ReportStore) GetReport(_ context.Context, id string) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return report.Report{}, fmt.Errorf("report %s: %w", id, report.ErrNotFound)
	}
	return r, nil
}

// ListReports returns up to limit summaries, newest first. A limit <= 0
// returns everything.
func (s *ReportStore) ListReports(_ context.Context, limit int) ([]report.Summary, error) {
	s.mu.RLock()
	out := make([]report.Summary, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Summarize())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b report.Summary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteReport removes a report or returns report.ErrNotFound.
func (s *ReportStore) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[id]; !ok {
		return fmt.Errorf("report %s: %w", id, report.ErrNotFound)
	}
	delete(s.reports, id)
	return nil
}
