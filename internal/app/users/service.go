// Package users manages registered identities after sign-up.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/app/auth"
	"github.com/omnibus-tickets/omnibus-api/internal/app/optional"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type Service struct {
	repo      userrepo.Repository
	companies companyrepo.Repository
	tickets   ticketrepo.Repository
	hasher    PasswordHasher
	clk       clockport.Clock
	audit     *audit.Logger
}

func NewService(repo userrepo.Repository, companies companyrepo.Repository, tickets ticketrepo.Repository, hasher PasswordHasher, clk clockport.Clock, auditLog *audit.Logger) *Service {
	return &Service{repo: repo, companies: companies, tickets: tickets, hasher: hasher, clk: clk, audit: auditLog}
}

// UpdateInput patches a user. None of the fields may be null.
type UpdateInput struct {
	Name     optional.Value[string]
	Email    optional.Value[string]
	Password optional.Value[string]
}

func (s *Service) GetMe(ctx context.Context, p domain.Principal) (domain.User, error) {
	return s.load(ctx, p.UserID)
}

func (s *Service) Get(ctx context.Context, p domain.Principal, id domain.UserID) (domain.User, error) {
	if !p.CanAccessUser(id) {
		return domain.User{}, userNotFound()
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	s.audit.Log(ctx, "User", string(id), domain.AuditActionRead, "")
	return u, nil
}

func (s *Service) List(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can list users")
	}
	us, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(us))
	for _, u := range us {
		out = append(out, toDomain(u))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, p domain.Principal, id domain.UserID, in UpdateInput) (domain.User, error) {
	if !p.CanAccessUser(id) {
		return domain.User{}, userNotFound()
	}
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, userNotFound()
		}
		return domain.User{}, err
	}

	details := map[string]any{}
	changed := []string{}
	if in.Name.IsSpecified() {
		name := domain.NormalizeHumanName(in.Name.Value())
		if in.Name.IsNull() || name == "" {
			details["name"] = "must be non-empty"
		} else {
			u.Name = name
			changed = append(changed, "name")
		}
	}
	if in.Email.IsSpecified() {
		email := domain.NormalizeEmail(in.Email.Value())
		if in.Email.IsNull() {
			details["email"] = "must not be null"
		} else if err := auth.ValidateEmail(email); err != nil {
			details["email"] = err.Error()
		} else if email != u.Email {
			u.Email = email
			changed = append(changed, "email")
		}
	}
	if in.Password.IsSpecified() {
		pw := in.Password.Value()
		if in.Password.IsNull() || len([]rune(pw)) < auth.MinPasswordLength {
			details["password"] = fmt.Sprintf("must be at least %d characters", auth.MinPasswordLength)
		} else {
			hash, err := s.hasher.Hash(pw)
			if err != nil {
				return domain.User{}, err
			}
			u.PasswordHash = hash
			changed = append(changed, "password")
		}
	}
	if len(details) > 0 {
		return domain.User{}, apperr.Validation("invalid user update", details)
	}
	if len(changed) == 0 {
		return toDomain(u), nil
	}

	u.UpdatedAt = s.clk.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrEmailTaken):
			return domain.User{}, apperr.Conflict("EMAIL_ALREADY_REGISTERED", "A user with this email is already registered.")
		case errors.Is(err, userrepo.ErrNotFound):
			return domain.User{}, userNotFound()
		default:
			return domain.User{}, err
		}
	}
	s.audit.Log(ctx, "User", string(id), domain.AuditActionUpdate, fmt.Sprintf("changed=%v", changed))
	return toDomain(u), nil
}

// Delete removes a user. Users that still own companies must delete them first.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id domain.UserID) error {
	if !p.CanAccessUser(id) {
		return userNotFound()
	}
	cs, err := s.companies.ListByOwner(ctx, id)
	if err != nil {
		return err
	}
	if len(cs) > 0 {
		return userOwnsCompanies()
	}
	// Any ticket, canceled ones included, keeps the user: tickets are the
	// purchase history and seat accounting of their trips.
	ts, err := s.tickets.ListByPassenger(ctx, id)
	if err != nil {
		return err
	}
	if len(ts) > 0 {
		return userHasTickets()
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrNotFound):
			return userNotFound()
		case errors.Is(err, userrepo.ErrHasTickets):
			return userHasTickets()
		case errors.Is(err, userrepo.ErrOwnsCompanies):
			return userOwnsCompanies()
		}
		return err
	}
	s.audit.Log(ctx, "User", string(id), domain.AuditActionDelete, "")
	return nil
}

func (s *Service) load(ctx context.Context, id domain.UserID) (domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.User{}, userNotFound()
		}
		return domain.User{}, err
	}
	return toDomain(u), nil
}

func userNotFound() *apperr.Error {
	return apperr.NotFound("USER_NOT_FOUND", "User not found.")
}

func userOwnsCompanies() *apperr.Error {
	return apperr.Unprocessable("USER_OWNS_COMPANIES", "Delete the user's companies before deleting the user.")
}

func userHasTickets() *apperr.Error {
	return apperr.Unprocessable("USER_HAS_TICKETS", "Users with tickets cannot be deleted.")
}

func toDomain(u userrepo.User) domain.User {
	return domain.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CPF:       u.CPF,
		Roles:     domain.Roles(append([]domain.Role(nil), u.Roles...)),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
