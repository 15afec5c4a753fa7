// Package fsx abstracts blob storage behind a small file-system style
// interface so domain code never touches an SDK client directly.
package fsx

import (
	"context"
	"io"
	"time"
)

// FileReader reads stored objects.
type FileReader interface {
	// ReadFile returns the full content of the object at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// FileSystem is the full storage surface used by the upload pipeline.
type FileSystem interface {
	FileReader

	// WriteFile stores content under path, overwriting any existing object.
	WriteFile(ctx context.Context, path string, data []byte) error

	// WriteFileStream stores content from a reader under path.
	WriteFileStream(ctx context.Context, path string, r io.Reader) error

	// DeleteFile removes the object at path. Missing objects are not an error.
	DeleteFile(ctx context.Context, path string) error

	// PresignGetURL returns a time-limited download URL for path.
	PresignGetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Join builds a storage path from segments.
	Join(parts ...string) string
}
