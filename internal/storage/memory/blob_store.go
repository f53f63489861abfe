// Package memory keeps jobs, reports, run history and report content in
// process memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/JakeFAU/signal-news/internal/report"
)

const uriScheme = "memory://"

// BlobStore stores report content in-memory and returns memory:// URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = byteData
	return uriScheme + path, nil
}

// GetObject returns a copy of the content stored under uri.
func (s *BlobStore) GetObject(_ context.Context, uri string) ([]byte, error) {
	path, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return nil, fmt.Errorf("unsupported uri %q", uri)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[path]
	if !ok {
		return nil, fmt.Errorf("object %q: %w", path, report.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// DeleteObject removes the content stored under uri.
func (s *BlobStore) DeleteObject(_ context.Context, uri string) error {
	path, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return fmt.Errorf("unsupported uri %q", uri)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[path]; !ok {
		return fmt.Errorf("object %q: %w", path, report.ErrNotFound)
	}
	delete(s.data, path)
	return nil
}
