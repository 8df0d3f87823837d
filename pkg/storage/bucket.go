package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BucketStorage persists objects on disk as <baseDir>/<bucket>/<path>.
type BucketStorage struct {
	baseDir string
}

// NewBucketStorage ensures the base directory exists and returns a handle.
func NewBucketStorage(baseDir string) (*BucketStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &BucketStorage{baseDir: baseDir}, nil
}

// Upload copies the reader into bucket/path, replacing any existing object.
func (s *BucketStorage) Upload(bucket, path string, r io.Reader) (string, error) {
	target, err := s.resolve(bucket, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("prepare bucket %s: %w", bucket, err)
	}
	file, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create object %s/%s: %w", bucket, path, err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write object %s/%s: %w", bucket, path, err)
	}
	return path, nil
}

// Open returns a read-only handle for the stored object.
func (s *BucketStorage) Open(bucket, path string) (*os.File, error) {
	target, err := s.resolve(bucket, path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, path, err)
	}
	return file, nil
}

// Delete removes a stored object if present.
func (s *BucketStorage) Delete(bucket, path string) error {
	target, err := s.resolve(bucket, path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object %s/%s: %w", bucket, path, err)
	}
	return nil
}

func (s *BucketStorage) resolve(bucket, path string) (string, error) {
	if bucket == "" || path == "" {
		return "", fmt.Errorf("bucket and path required")
	}
	clean := filepath.Clean("/" + path)
	if strings.Contains(bucket, "/") || strings.Contains(bucket, "..") {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	return filepath.Join(s.baseDir, bucket, clean), nil
}
