package triprepo

import (
	"context"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// Trip is the persistence shape used by the trip repository.
type Trip struct {
	ID              domain.TripID
	CompanyID       domain.CompanyID
	Origin          string
	Destination     string
	DepartureAt     time.Time
	PriceCents      int64
	SeatsTotal      int
	SeatsAvailable  int
	AssignedSeating bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SearchFilter narrows trip searches. Zero values match everything.
// Origin and Destination match case-insensitively on the full value.
// DepartureFrom/DepartureTo bound DepartureAt as [from, to).
type SearchFilter struct {
	CompanyID     domain.CompanyID
	Origin        string
	Destination   string
	DepartureFrom time.Time
	DepartureTo   time.Time
	Limit         int
}

// Repository provides access to persisted trips.
//
// Search returns trips ordered by DepartureAt ascending, then ID.
type Repository interface {
	Create(ctx context.Context, t Trip) error
	// Update replaces the trip's fields except SeatsAvailable, which shifts by the change in
	// SeatsTotal so concurrent reservations are kept. It returns ErrSeatsBelowSold when the new
	// total is below the seats already sold.
	Update(ctx context.Context, t Trip) error
	// Delete returns ErrHasTickets when stored tickets reference the trip.
	Delete(ctx context.Context, id domain.TripID) error

	GetByID(ctx context.Context, id domain.TripID) (Trip, error)
	Search(ctx context.Context, f SearchFilter) ([]Trip, error)

	// ReserveSeat atomically decrements SeatsAvailable. It returns ErrSoldOut when none are left.
	ReserveSeat(ctx context.Context, id domain.TripID) error
	// ReleaseSeat atomically increments SeatsAvailable, never above SeatsTotal.
	ReleaseSeat(ctx context.Context, id domain.TripID) error
}
