package ticketrepo

import "errors"

var (
	// ErrNotFound indicates the requested ticket does not exist.
	ErrNotFound = errors.New("ticket not found")

	// ErrSeatTaken indicates the seat is already held on the trip.
	ErrSeatTaken = errors.New("ticket seat already taken")

	// ErrStatusChanged indicates the ticket left the expected status before a transition.
	ErrStatusChanged = errors.New("ticket status changed")

	// ErrAlreadyExists indicates a ticket already exists with the provided ID.
	ErrAlreadyExists = errors.New("ticket already exists")
)
