// Package local implements a filesystem blob store for report content.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/signal-news/internal/report"
)

const uriScheme = "file://"

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where report content is written.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes report content under a base directory.
type BlobStore struct {
	baseDir string
}

// New creates the base directory if needed and verifies it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe, err := os.CreateTemp(cfg.BaseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	name := probe.Name()
	if err := probe.Close(); err != nil {
		return nil, fmt.Errorf("close probe file: %w", err)
	}
	if err := os.Remove(name); err != nil {
		return nil, fmt.Errorf("failed to clean up probe file: %w", err)
	}
	return &BlobStore{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// PutObject writes data below the base directory and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath, err := s.resolve(filepath.Join(s.baseDir, path))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}
	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return uriScheme + fullPath, nil
}

// GetObject reads back content written by PutObject.
func (s *BlobStore) GetObject(_ context.Context, uri string) ([]byte, error) {
	raw, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return nil, fmt.Errorf("unsupported uri %q", uri)
	}
	fullPath, err := s.resolve(raw)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to baseDir by resolve.
	data, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("object %q: %w", fullPath, report.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// DeleteObject removes a file written by PutObject.
func (s *BlobStore) DeleteObject(_ context.Context, uri string) error {
	raw, ok := strings.CutPrefix(uri, uriScheme)
	if !ok {
		return fmt.Errorf("unsupported uri %q", uri)
	}
	fullPath, err := s.resolve(raw)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("object %q: %w", fullPath, report.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

func (s *BlobStore) resolve(fullPath string) (string, error) {
	clean := filepath.Clean(fullPath)
	if !strings.HasPrefix(clean, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return clean, nil
}
