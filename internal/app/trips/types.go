package trips

import (
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/app/optional"
)

type CreateInput struct {
	Origin          string
	Destination     string
	DepartureAt     time.Time
	PriceCents      int64
	SeatsTotal      int
	AssignedSeating bool
}

// UpdateInput patches a trip. Null is rejected for every field.
type UpdateInput struct {
	Origin          optional.Value[string]
	Destination     optional.Value[string]
	DepartureAt     optional.Value[time.Time]
	PriceCents      optional.Value[int64]
	SeatsTotal      optional.Value[int]
	AssignedSeating optional.Value[bool]
}

// SearchInput narrows Search. DepartureDate selects one UTC calendar day; when zero,
// only trips that have not departed yet are returned.
type SearchInput struct {
	CompanyID     string
	Origin        string
	Destination   string
	DepartureDate time.Time
	Limit         int
}
