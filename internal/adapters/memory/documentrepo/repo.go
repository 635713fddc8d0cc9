package documentrepo

import (
	"context"
	"sync"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/documentrepo"
)

// Repo is an in-memory implementation of documentrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]documentrepo.Document
}

func NewRepo() *Repo {
	return &Repo{byUser: make(map[domain.UserID]documentrepo.Document)}
}

func (r *Repo) Upsert(ctx context.Context, d documentrepo.Document) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[d.UserID] = d
	return nil
}

func (r *Repo) GetByUser(ctx context.Context, user domain.UserID) (documentrepo.Document, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byUser[user]
	if !ok {
		return documentrepo.Document{}, documentrepo.ErrNotFound
	}
	return d, nil
}
