package triprepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
)

// Repo is an in-memory implementation of triprepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.TripID]triprepo.Trip
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.TripID]triprepo.Trip)}
}

func (r *Repo) Create(ctx context.Context, t triprepo.Trip) error {
	_ = ctx
	if t.ID == "" {
		return triprepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; ok {
		return triprepo.ErrAlreadyExists
	}
	r.byID[t.ID] = t
	return nil
}

func (r *Repo) Update(ctx context.Context, t triprepo.Trip) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[t.ID]
	if !ok {
		return triprepo.ErrNotFound
	}
	sold := existing.SeatsTotal - existing.SeatsAvailable
	if t.SeatsTotal < sold {
		return triprepo.ErrSeatsBelowSold
	}
	t.SeatsAvailable = t.SeatsTotal - sold
	t.CreatedAt = existing.CreatedAt
	r.byID[t.ID] = t
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.TripID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return triprepo.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	return t, nil
}

func (r *Repo) Search(ctx context.Context, f triprepo.SearchFilter) ([]triprepo.Trip, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]triprepo.Trip, 0)
	for _, t := range r.byID {
		if matches(t, f) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartureAt.Equal(out[j].DepartureAt) {
			return string(out[i].ID) < string(out[j].ID)
		}
		return out[i].DepartureAt.Before(out[j].DepartureAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repo) ReserveSeat(ctx context.Context, id domain.TripID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return triprepo.ErrNotFound
	}
	if t.SeatsAvailable <= 0 {
		return triprepo.ErrSoldOut
	}
	t.SeatsAvailable--
	r.byID[id] = t
	return nil
}

func (r *Repo) ReleaseSeat(ctx context.Context, id domain.TripID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return triprepo.ErrNotFound
	}
	if t.SeatsAvailable < t.SeatsTotal {
		t.SeatsAvailable++
		r.byID[id] = t
	}
	return nil
}

func matches(t triprepo.Trip, f triprepo.SearchFilter) bool {
	if f.CompanyID != "" && t.CompanyID != f.CompanyID {
		return false
	}
	if f.Origin != "" && !strings.EqualFold(t.Origin, strings.TrimSpace(f.Origin)) {
		return false
	}
	if f.Destination != "" && !strings.EqualFold(t.Destination, strings.TrimSpace(f.Destination)) {
		return false
	}
	if !f.DepartureFrom.IsZero() && t.DepartureAt.Before(f.DepartureFrom) {
		return false
	}
	if !f.DepartureTo.IsZero() && !t.DepartureAt.Before(f.DepartureTo) {
		return false
	}
	return true
}
