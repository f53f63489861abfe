// Package gcs provides a report content store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/signal-news/internal/report"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
}

// BlobStore writes report content to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{client: client, bucket: cfg.Bucket}, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return FormatURI(s.bucket, path), nil
}

// GetObject downloads the object behind a gs:// URI from the configured bucket.
func (s *BlobStore) GetObject(ctx context.Context, uri string) ([]byte, error) {
	bucket, path, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if bucket != s.bucket {
		return nil, fmt.Errorf("object %q is outside bucket %q", uri, s.bucket)
	}
	reader, err := s.client.Bucket(bucket).Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("object %q: %w", uri, report.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// DeleteObject removes the object behind a gs:// URI from the configured bucket.
func (s *BlobStore) DeleteObject(ctx context.Context, uri string) error {
	bucket, path, err := ParseURI(uri)
	if err != nil {
		return err
	}
	if bucket != s.bucket {
		return fmt.Errorf("object %q is outside bucket %q", uri, s.bucket)
	}
	err = s.client.Bucket(bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("object %q: %w", uri, report.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// FormatURI renders a gs:// URI.
func FormatURI(bucket, path string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, path)
}

// ParseURI splits a gs:// URI into bucket and object path.
func ParseURI(uri string) (bucket, path string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("unsupported uri %q", uri)
	}
	bucket, path, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || path == "" {
		return "", "", fmt.Errorf("malformed gcs uri %q", uri)
	}
	return bucket, path, nil
}
