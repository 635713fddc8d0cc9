package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
)

var _ idempotency.Store = (*Store)(nil)

// Store keeps idempotency entries in a map. Bodies are copied in and out so a
// replay never aliases caller memory.
type Store struct {
	mu      sync.Mutex
	entries map[idempotency.Scope]idempotency.Entry
}

func NewStore() *Store {
	return &Store{entries: make(map[idempotency.Scope]idempotency.Entry)}
}

func (s *Store) Claim(_ context.Context, scope idempotency.Scope, requestHash string, at time.Time) (idempotency.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[scope]; ok && !e.CreatedAt.Before(at.Add(-idempotency.Retention)) {
		return cloneEntry(e), true, nil
	}
	s.entries[scope] = idempotency.Entry{RequestHash: requestHash, CreatedAt: at.UTC()}
	return idempotency.Entry{}, false, nil
}

func (s *Store) Complete(_ context.Context, scope idempotency.Scope, requestHash string, statusCode int, contentType string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[scope]
	if !ok || e.RequestHash != requestHash {
		return nil
	}
	e.StatusCode = statusCode
	e.ContentType = contentType
	e.Body = append([]byte(nil), body...)
	s.entries[scope] = e
	return nil
}

func (s *Store) Release(_ context.Context, scope idempotency.Scope, requestHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[scope]; ok && e.RequestHash == requestHash && !e.Completed() {
		delete(s.entries, scope)
	}
	return nil
}

func (s *Store) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for scope, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(s.entries, scope)
			n++
		}
	}
	return n, nil
}

func cloneEntry(e idempotency.Entry) idempotency.Entry {
	e.Body = append([]byte(nil), e.Body...)
	return e
}
