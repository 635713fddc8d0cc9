package userrepo

import (
	"context"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// User is the persistence shape used by the user repository.
// Email is stored normalized (lowercase) and CPF digits-only; uniqueness is enforced on both.
type User struct {
	ID           domain.UserID
	Name         string
	Email        string
	PasswordHash string
	CPF          string
	Roles        []domain.Role

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted users.
//
// List returns users ordered by Name ascending (case-insensitive), then ID.
type Repository interface {
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	// Delete returns ErrHasTickets or ErrOwnsCompanies when stored references forbid it.
	Delete(ctx context.Context, id domain.UserID) error

	GetByID(ctx context.Context, id domain.UserID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context) ([]User, error)
}
