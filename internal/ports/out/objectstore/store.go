package objectstore

import (
	"context"
	"io"
	"time"
)

// Store is a bucket-scoped blob store for uploaded documents.
type Store interface {
	// EnsureBucket creates the configured bucket when it does not exist yet.
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// PresignGet returns a time-limited download URL for key.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
