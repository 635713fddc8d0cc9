package ticketrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
)

// Repo is an in-memory implementation of ticketrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.TicketID]ticketrepo.Ticket
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.TicketID]ticketrepo.Ticket)}
}

func (r *Repo) Create(ctx context.Context, t ticketrepo.Ticket) error {
	_ = ctx
	if t.ID == "" {
		return ticketrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; ok {
		return ticketrepo.ErrAlreadyExists
	}
	if r.seatTakenLocked(t) {
		return ticketrepo.ErrSeatTaken
	}
	r.byID[t.ID] = cloneTicket(t)
	return nil
}

func (r *Repo) Update(ctx context.Context, t ticketrepo.Ticket) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; !ok {
		return ticketrepo.ErrNotFound
	}
	if r.seatTakenLocked(t) {
		return ticketrepo.ErrSeatTaken
	}
	r.byID[t.ID] = cloneTicket(t)
	return nil
}

func (r *Repo) Transition(ctx context.Context, id domain.TicketID, from, to domain.TicketStatus, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return ticketrepo.ErrNotFound
	}
	if t.Status != from {
		return ticketrepo.ErrStatusChanged
	}
	t.Status = to
	t.UpdatedAt = at
	if r.seatTakenLocked(t) {
		return ticketrepo.ErrSeatTaken
	}
	r.byID[id] = t
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TicketID) (ticketrepo.Ticket, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return ticketrepo.Ticket{}, ticketrepo.ErrNotFound
	}
	return cloneTicket(t), nil
}

func (r *Repo) ListByPassenger(ctx context.Context, passenger domain.UserID) ([]ticketrepo.Ticket, error) {
	return r.list(ctx, func(t ticketrepo.Ticket) bool { return t.PassengerID == passenger })
}

func (r *Repo) ListByTrip(ctx context.Context, trip domain.TripID) ([]ticketrepo.Ticket, error) {
	return r.list(ctx, func(t ticketrepo.Ticket) bool { return t.TripID == trip })
}

func (r *Repo) SeatTaken(ctx context.Context, trip domain.TripID, seat int) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	candidate := ticketrepo.Ticket{TripID: trip, Seat: &seat, Status: domain.TicketStatusPending}
	return r.seatTakenLocked(candidate), nil
}

func (r *Repo) list(ctx context.Context, keep func(ticketrepo.Ticket) bool) ([]ticketrepo.Ticket, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ticketrepo.Ticket, 0)
	for _, t := range r.byID {
		if keep(t) {
			out = append(out, cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return string(out[i].ID) < string(out[j].ID)
		}
		return out[i].PurchasedAt.Before(out[j].PurchasedAt)
	})
	return out, nil
}

// seatTakenLocked reports whether another live ticket of the same trip holds t's seat.
func (r *Repo) seatTakenLocked(t ticketrepo.Ticket) bool {
	if t.Seat == nil || t.Status == domain.TicketStatusCanceled {
		return false
	}
	for _, other := range r.byID {
		if other.ID == t.ID || other.TripID != t.TripID || other.Status == domain.TicketStatusCanceled {
			continue
		}
		if other.Seat != nil && *other.Seat == *t.Seat {
			return true
		}
	}
	return false
}

func cloneTicket(t ticketrepo.Ticket) ticketrepo.Ticket {
	out := t
	if t.Seat != nil {
		v := *t.Seat
		out.Seat = &v
	}
	return out
}
