package triprepo

import "errors"

var (
	// ErrNotFound indicates the requested trip does not exist.
	ErrNotFound = errors.New("trip not found")

	// ErrSoldOut indicates the trip has no seats left to reserve.
	ErrSoldOut = errors.New("trip sold out")

	// ErrSeatsBelowSold indicates an update would leave fewer seats than are already sold.
	ErrSeatsBelowSold = errors.New("trip seats below sold")

	// ErrAlreadyExists indicates a trip already exists with the provided ID.
	ErrAlreadyExists = errors.New("trip already exists")

	// ErrHasTickets indicates Delete was refused because tickets reference the trip.
	ErrHasTickets = errors.New("trip has tickets")
)
