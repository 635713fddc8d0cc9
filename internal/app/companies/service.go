// Package companies manages bus operators and the COMPANY role that comes with owning one.
package companies

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

type Service struct {
	companies companyrepo.Repository
	users     userrepo.Repository
	trips     triprepo.Repository
	clk       clockport.Clock
	audit     *audit.Logger

	newCompanyID func() domain.CompanyID
}

func NewService(companies companyrepo.Repository, users userrepo.Repository, trips triprepo.Repository, clk clockport.Clock, auditLog *audit.Logger) *Service {
	return &Service{
		companies: companies,
		users:     users,
		trips:     trips,
		clk:       clk,
		audit:     auditLog,
		newCompanyID: func() domain.CompanyID {
			return domain.CompanyID(uuid.NewString())
		},
	}
}

// SetNewCompanyIDForTest overrides company ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewCompanyIDForTest(fn func() domain.CompanyID) {
	if fn != nil {
		s.newCompanyID = fn
	}
}

// Create registers a company and grants its owner the COMPANY role.
func (s *Service) Create(ctx context.Context, p domain.Principal, in CreateInput) (domain.Company, error) {
	owner := in.OwnerID
	if owner == "" {
		owner = p.UserID
	}
	if owner != p.UserID && !p.IsAdmin() {
		return domain.Company{}, apperr.Forbidden("only administrators can register a company for another user")
	}

	cnpj := domain.NormalizeDigits(in.CNPJ)
	trade := domain.NormalizeHumanName(in.TradeName)
	legal := domain.NormalizeHumanName(in.LegalName)
	details := map[string]any{}
	if !domain.ValidCNPJ(cnpj) {
		details["cnpj"] = "must be a valid CNPJ"
	}
	if trade == "" {
		details["tradeName"] = "must be non-empty"
	}
	if legal == "" {
		details["legalName"] = "must be non-empty"
	}
	if len(details) > 0 {
		return domain.Company{}, apperr.Validation("invalid company", details)
	}

	u, err := s.users.GetByID(ctx, owner)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return domain.Company{}, apperr.Validation("invalid owner", map[string]any{"ownerId": "user does not exist"})
		}
		return domain.Company{}, err
	}

	now := s.clk.Now()
	c := companyrepo.Company{
		ID:        s.newCompanyID(),
		OwnerID:   owner,
		CNPJ:      cnpj,
		TradeName: trade,
		LegalName: legal,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.companies.Create(ctx, c); err != nil {
		if errors.Is(err, companyrepo.ErrCNPJTaken) {
			return domain.Company{}, apperr.Conflict("CNPJ_ALREADY_REGISTERED", "A company with this CNPJ is already registered.")
		}
		return domain.Company{}, err
	}

	roles := domain.Roles(u.Roles)
	if !roles.Has(domain.RoleCompany) {
		u.Roles = roles.With(domain.RoleCompany)
		u.UpdatedAt = now
		if err := s.users.Update(ctx, u); err != nil {
			return domain.Company{}, fmt.Errorf("grant company role: %w", err)
		}
		s.audit.Log(ctx, "User", string(u.ID), domain.AuditActionUpdate, "granted COMPANY")
	}

	s.audit.Log(ctx, "Company", string(c.ID), domain.AuditActionCreate, "")
	return toDomain(c), nil
}

func (s *Service) Get(ctx context.Context, p domain.Principal, id domain.CompanyID) (domain.Company, error) {
	c, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return domain.Company{}, err
	}
	s.audit.Log(ctx, "Company", string(id), domain.AuditActionRead, "")
	return toDomain(c), nil
}

func (s *Service) ListMine(ctx context.Context, p domain.Principal) ([]domain.Company, error) {
	cs, err := s.companies.ListByOwner(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Company, 0, len(cs))
	for _, c := range cs {
		out = append(out, toDomain(c))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, p domain.Principal, id domain.CompanyID, in UpdateInput) (domain.Company, error) {
	c, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return domain.Company{}, err
	}

	details := map[string]any{}
	changed := false
	if in.TradeName.IsSpecified() {
		v := domain.NormalizeHumanName(in.TradeName.Value())
		if in.TradeName.IsNull() || v == "" {
			details["tradeName"] = "must be non-empty"
		} else if v != c.TradeName {
			c.TradeName = v
			changed = true
		}
	}
	if in.LegalName.IsSpecified() {
		v := domain.NormalizeHumanName(in.LegalName.Value())
		if in.LegalName.IsNull() || v == "" {
			details["legalName"] = "must be non-empty"
		} else if v != c.LegalName {
			c.LegalName = v
			changed = true
		}
	}
	if len(details) > 0 {
		return domain.Company{}, apperr.Validation("invalid company update", details)
	}
	if !changed {
		return toDomain(c), nil
	}

	c.UpdatedAt = s.clk.Now()
	if err := s.companies.Update(ctx, c); err != nil {
		if errors.Is(err, companyrepo.ErrNotFound) {
			return domain.Company{}, companyNotFound()
		}
		return domain.Company{}, err
	}
	s.audit.Log(ctx, "Company", string(id), domain.AuditActionUpdate, "")
	return toDomain(c), nil
}

// Delete removes a company without trips. The owner loses the COMPANY role with their last company.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id domain.CompanyID) error {
	c, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return err
	}
	ts, err := s.trips.Search(ctx, triprepo.SearchFilter{CompanyID: id, Limit: 1})
	if err != nil {
		return err
	}
	if len(ts) > 0 {
		return apperr.Unprocessable("COMPANY_HAS_TRIPS", "Delete the company's trips before deleting the company.")
	}
	if err := s.companies.Delete(ctx, id); err != nil {
		if errors.Is(err, companyrepo.ErrNotFound) {
			return companyNotFound()
		}
		return err
	}
	s.audit.Log(ctx, "Company", string(id), domain.AuditActionDelete, "")

	remaining, err := s.companies.ListByOwner(ctx, c.OwnerID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return nil
	}
	u, err := s.users.GetByID(ctx, c.OwnerID)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			return nil
		}
		return err
	}
	roles := domain.Roles(u.Roles)
	if !roles.Has(domain.RoleCompany) {
		return nil
	}
	u.Roles = roles.Without(domain.RoleCompany)
	u.UpdatedAt = s.clk.Now()
	if err := s.users.Update(ctx, u); err != nil {
		return fmt.Errorf("revoke company role: %w", err)
	}
	s.audit.Log(ctx, "User", string(u.ID), domain.AuditActionUpdate, "revoked COMPANY")
	return nil
}

// loadVisible returns the company when p owns it or is an administrator.
// Other callers get 404 so company IDs cannot be enumerated.
func (s *Service) loadVisible(ctx context.Context, p domain.Principal, id domain.CompanyID) (companyrepo.Company, error) {
	c, err := s.companies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, companyrepo.ErrNotFound) {
			return companyrepo.Company{}, companyNotFound()
		}
		return companyrepo.Company{}, err
	}
	if c.OwnerID != p.UserID && !p.IsAdmin() {
		return companyrepo.Company{}, companyNotFound()
	}
	return c, nil
}

func companyNotFound() *apperr.Error {
	return apperr.NotFound("COMPANY_NOT_FOUND", "Company not found.")
}

func toDomain(c companyrepo.Company) domain.Company {
	return domain.Company{
		ID:        c.ID,
		OwnerID:   c.OwnerID,
		CNPJ:      c.CNPJ,
		TradeName: c.TradeName,
		LegalName: c.LegalName,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
