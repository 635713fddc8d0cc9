package ticketrepo

import (
	"context"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// Ticket is the persistence shape used by the ticket repository.
//
// A seat number is unique per trip among tickets that are not CANCELED.
type Ticket struct {
	ID              domain.TicketID
	TripID          domain.TripID
	PassengerID     domain.UserID
	Status          domain.TicketStatus
	Seat            *int
	AmountPaidCents int64

	PurchasedAt time.Time
	UpdatedAt   time.Time
}

// Repository provides access to persisted tickets.
//
// List methods return tickets ordered by PurchasedAt ascending, then ID.
type Repository interface {
	// Create stores a new ticket. It returns ErrSeatTaken when Seat is set and already held
	// by a non-canceled ticket of the same trip.
	Create(ctx context.Context, t Ticket) error
	Update(ctx context.Context, t Ticket) error
	// Transition moves a ticket from status from to status to, stamping UpdatedAt with at.
	// It returns ErrStatusChanged when the stored status is no longer from.
	Transition(ctx context.Context, id domain.TicketID, from, to domain.TicketStatus, at time.Time) error

	GetByID(ctx context.Context, id domain.TicketID) (Ticket, error)
	ListByPassenger(ctx context.Context, passenger domain.UserID) ([]Ticket, error)
	ListByTrip(ctx context.Context, trip domain.TripID) ([]Ticket, error)
	// SeatTaken reports whether a non-canceled ticket of trip holds seat.
	SeatTaken(ctx context.Context, trip domain.TripID, seat int) (bool, error)
}
