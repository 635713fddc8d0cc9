package idempotency

import (
	"context"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// Retention is how long a key stays bound to its first request. Older entries
// are treated as absent by Claim and removed by Prune.
const Retention = 24 * time.Hour

// Key is the caller-provided Idempotency-Key header.
type Key string

// Scope is the namespace of a key: the same key sent by another user or to
// another route is unrelated. Route is "METHOD path", e.g. "POST /trips/t-1/tickets".
type Scope struct {
	Key     Key
	Subject domain.UserID
	Route   string
}

// Entry is what a Scope is bound to. StatusCode is zero until the first
// request finished successfully and its response was stored.
type Entry struct {
	RequestHash string
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Completed reports whether the entry holds a response to replay.
func (e Entry) Completed() bool { return e.StatusCode != 0 }

// Store binds idempotency keys to requests and their responses.
type Store interface {
	// Claim binds scope to requestHash at time at. When a live entry already
	// exists it is returned unchanged with found=true.
	Claim(ctx context.Context, scope Scope, requestHash string, at time.Time) (existing Entry, found bool, err error)
	// Complete stores the response for a claimed scope. It is a no-op when the
	// scope is bound to a different request hash.
	Complete(ctx context.Context, scope Scope, requestHash string, statusCode int, contentType string, body []byte) error
	// Release drops a pending claim so the key can be retried after the first
	// attempt failed. Completed entries and other request hashes are left alone.
	Release(ctx context.Context, scope Scope, requestHash string) error
	// Prune deletes entries created before cutoff and reports how many went.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
