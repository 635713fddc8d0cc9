// Package auth registers identities and exchanges credentials for role-scoped tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/password"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// TokenIssuer is the part of the token service auth needs.
type TokenIssuer interface {
	Issue(id tokens.Identity, role domain.Role) (tokens.Credential, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type Service struct {
	users     userrepo.Repository
	companies companyrepo.Repository
	issuer    TokenIssuer
	hasher    PasswordHasher
	clk       clockport.Clock
	audit     *audit.Logger

	newUserID func() domain.UserID

	// dummyHash is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash string
}

func NewService(users userrepo.Repository, companies companyrepo.Repository, issuer TokenIssuer, hasher PasswordHasher, clk clockport.Clock, auditLog *audit.Logger) *Service {
	return &Service{
		users:     users,
		companies: companies,
		issuer:    issuer,
		hasher:    hasher,
		clk:       clk,
		audit:     auditLog,
		newUserID: func() domain.UserID {
			return domain.UserID(uuid.NewString())
		},
	}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	CPF      string
}

type LoginInput struct {
	Email    string
	Password string
	// Role is the role to act as. Empty selects PASSENGER when held, else the first held role.
	Role string
}

type LoginResult struct {
	Credential tokens.Credential
	User       domain.User
}

// Register creates a PASSENGER identity.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	name := domain.NormalizeHumanName(in.Name)
	email := domain.NormalizeEmail(in.Email)
	cpf := domain.NormalizeDigits(in.CPF)

	details := map[string]any{}
	if name == "" {
		details["name"] = "must be non-empty"
	}
	if err := ValidateEmail(email); err != nil {
		details["email"] = err.Error()
	}
	if len([]rune(in.Password)) < MinPasswordLength {
		details["password"] = fmt.Sprintf("must be at least %d characters", MinPasswordLength)
	}
	if !domain.ValidCPF(cpf) {
		details["cpf"] = "must be a valid CPF"
	}
	if len(details) > 0 {
		return domain.User{}, apperr.Validation("invalid registration", details)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return domain.User{}, emailTaken()
	} else if !errors.Is(err, userrepo.ErrNotFound) {
		return domain.User{}, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, err
	}

	now := s.clk.Now()
	u := userrepo.User{
		ID:           s.newUserID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CPF:          cpf,
		Roles:        []domain.Role{domain.RolePassenger},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, userrepo.ErrEmailTaken):
			return domain.User{}, emailTaken()
		case errors.Is(err, userrepo.ErrCPFTaken):
			return domain.User{}, apperr.Conflict("CPF_ALREADY_REGISTERED", "A user with this CPF is already registered.")
		default:
			return domain.User{}, err
		}
	}

	s.audit.Log(ctx, "User", string(u.ID), domain.AuditActionCreate, "registered")
	return toDomainUser(u), nil
}

// Login checks the password and issues a credential for the requested role.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return LoginResult{}, invalidCredentials()
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			_ = s.hasher.Compare(s.dummy(), in.Password)
			return LoginResult{}, invalidCredentials()
		}
		return LoginResult{}, err
	}
	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return LoginResult{}, invalidCredentials()
		}
		return LoginResult{}, err
	}

	user := toDomainUser(u)
	role, err := s.pickRole(user, in.Role)
	if err != nil {
		return LoginResult{}, err
	}
	cred, err := s.issueFor(ctx, user, role)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Credential: cred, User: user}, nil
}

// SwitchRole issues a fresh credential for another role the caller already holds.
func (s *Service) SwitchRole(ctx context.Context, p domain.Principal, roleName string) (tokens.Credential, error) {
	role, ok := domain.ParseRole(roleName)
	if !ok {
		return tokens.Credential{}, invalidRole(roleName)
	}
	u, err := s.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return tokens.Credential{}, &apperr.Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "identity no longer exists"}
		}
		return tokens.Credential{}, err
	}
	return s.issueFor(ctx, toDomainUser(u), role)
}

func (s *Service) pickRole(u domain.User, requested string) (domain.Role, error) {
	if strings.TrimSpace(requested) == "" {
		if u.Roles.Has(domain.RolePassenger) || len(u.Roles) == 0 {
			return domain.RolePassenger, nil
		}
		return u.Roles[0], nil
	}
	role, ok := domain.ParseRole(requested)
	if !ok {
		return "", invalidRole(requested)
	}
	return role, nil
}

// issueFor applies the role rules shared by Login and SwitchRole and signs the credential.
func (s *Service) issueFor(ctx context.Context, u domain.User, role domain.Role) (tokens.Credential, error) {
	if role == domain.RoleCompany && u.Roles.Has(domain.RoleCompany) {
		cs, err := s.companies.ListByOwner(ctx, u.ID)
		if err != nil {
			return tokens.Credential{}, err
		}
		if len(cs) == 0 {
			return tokens.Credential{}, &apperr.Error{
				Status:  http.StatusForbidden,
				Code:    "COMPANY_REQUIRED",
				Message: "The COMPANY role requires owning at least one company.",
			}
		}
	}

	cred, err := s.issuer.Issue(tokens.Identity{ID: u.ID, Email: u.Email, Roles: u.Roles}, role)
	if err != nil {
		switch {
		case errors.Is(err, tokens.ErrRoleNotHeld):
			return tokens.Credential{}, &apperr.Error{
				Status:  http.StatusForbidden,
				Code:    "ROLE_NOT_HELD",
				Message: "The identity does not hold the requested role.",
				Details: map[string]any{"role": string(role)},
			}
		case errors.Is(err, tokens.ErrSecretMissing):
			return tokens.Credential{}, &apperr.Error{
				Status:  http.StatusInternalServerError,
				Code:    "CONFIGURATION_ERROR",
				Message: "Token signing is not configured.",
				Err:     err,
			}
		default:
			return tokens.Credential{}, err
		}
	}
	return cred, nil
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// ValidateEmail accepts a bare address (no display name).
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("must be a valid email address")
	}
	return nil
}

// toDomainUser converts a stored user. The password hash is kept for the auth flow only;
// adapters never serialize it.
func toDomainUser(u userrepo.User) domain.User {
	return domain.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CPF:          u.CPF,
		Roles:        domain.Roles(append([]domain.Role(nil), u.Roles...)),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func invalidCredentials() *apperr.Error {
	return &apperr.Error{Status: http.StatusUnauthorized, Code: "INVALID_CREDENTIALS", Message: "Invalid email or password."}
}

func emailTaken() *apperr.Error {
	return apperr.Conflict("EMAIL_ALREADY_REGISTERED", "A user with this email is already registered.")
}

func invalidRole(name string) *apperr.Error {
	return apperr.Validation("invalid role", map[string]any{"role": fmt.Sprintf("%q is not one of PASSENGER, COMPANY, ADMIN", name)})
}
