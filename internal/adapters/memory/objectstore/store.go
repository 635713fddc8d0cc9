package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Object is a stored blob.
type Object struct {
	Body        []byte
	ContentType string
}

// Store is an in-memory implementation of objectstore.Store.
// PresignGet returns memory:// URLs that only identify the object.
type Store struct {
	mu      sync.RWMutex
	bucket  string
	created bool
	objects map[string]Object
}

func NewStore(bucket string) *Store {
	return &Store{bucket: bucket, objects: make(map[string]Object)}
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	return nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_ = ctx
	var buf bytes.Buffer
	n, err := io.Copy(&buf, body)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("object size mismatch: got %d want %d", n, size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.created {
		return fmt.Errorf("bucket %q does not exist", s.bucket)
	}
	s.objects[key] = Object{Body: buf.Bytes(), ContentType: contentType}
	return nil
}

func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object %q not found", key)
	}
	u := url.URL{Scheme: "memory", Host: s.bucket, Path: "/" + key}
	q := u.Query()
	q.Set("expires", ttl.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Get returns a stored object. Used by tests to inspect uploads.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	return o, ok
}
