package clock

import (
	"time"

	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
)

var _ clockport.Clock = SystemClock{}

// SystemClock reads the wall clock. Times are always UTC so token expiry and
// departure comparisons never depend on the host time zone.
type SystemClock struct{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
