package auditlog

import (
	"context"
	"sync"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// Store is an in-memory, append-only implementation of auditlog.Store.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Append(ctx context.Context, e domain.AuditEntry) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.AuditEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
