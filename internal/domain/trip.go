package domain

import "time"

// Trip is a scheduled bus departure sold by a company.
// Prices are kept in cents to avoid floating point money.
type Trip struct {
	ID          TripID
	CompanyID   CompanyID
	Origin      string
	Destination string
	DepartureAt time.Time
	PriceCents  int64

	SeatsTotal     int
	SeatsAvailable int
	// AssignedSeating means passengers must pick a seat number when buying.
	AssignedSeating bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeatsSold is the number of seats currently held by non-canceled tickets.
func (t Trip) SeatsSold() int {
	return t.SeatsTotal - t.SeatsAvailable
}

type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusPaid     TicketStatus = "PAID"
	TicketStatusCanceled TicketStatus = "CANCELED"
)

type Ticket struct {
	ID          TicketID
	TripID      TripID
	PassengerID UserID
	Status      TicketStatus
	// Seat is nil for trips without assigned seating.
	Seat            *int
	AmountPaidCents int64

	PurchasedAt time.Time
	UpdatedAt   time.Time
}
