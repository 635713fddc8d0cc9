package documentrepo

import (
	"context"
	"errors"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// ErrNotFound indicates the user has no document on file.
var ErrNotFound = errors.New("document not found")

// Document is the persistence shape of identity document metadata.
type Document struct {
	ID          domain.DocumentID
	UserID      domain.UserID
	Type        domain.DocumentType
	ObjectKey   string
	ContentType string
	SizeBytes   int64
	Validated   bool
	UploadedAt  time.Time
}

// Repository stores at most one document per user.
type Repository interface {
	// Upsert replaces any existing document of d.UserID.
	Upsert(ctx context.Context, d Document) error
	GetByUser(ctx context.Context, user domain.UserID) (Document, error)
}
