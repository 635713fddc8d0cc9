package companyrepo

import (
	"context"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// Company is the persistence shape used by the company repository. CNPJ is digits-only and unique.
type Company struct {
	ID        domain.CompanyID
	OwnerID   domain.UserID
	CNPJ      string
	TradeName string
	LegalName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted companies.
//
// ListByOwner returns companies ordered by TradeName ascending (case-insensitive), then ID.
type Repository interface {
	Create(ctx context.Context, c Company) error
	Update(ctx context.Context, c Company) error
	Delete(ctx context.Context, id domain.CompanyID) error

	GetByID(ctx context.Context, id domain.CompanyID) (Company, error)
	ListByOwner(ctx context.Context, owner domain.UserID) ([]Company, error)
}
