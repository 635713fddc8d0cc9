package auditlog

import (
	"context"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// Store persists audit entries. It is append-only.
type Store interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	// List returns the most recent entries first, at most limit (limit <= 0 means no bound).
	List(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}
