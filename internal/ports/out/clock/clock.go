package clock

import "time"

// Clock provides time to the application.
// Services and the token issuer take a Clock so tests can pin "now".
type Clock interface {
	Now() time.Time
}
