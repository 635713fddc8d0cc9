package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/omnibus-tickets/omnibus-api/internal/app/companies"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

func (s *Server) CreateCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req CreateCompanyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	c, err := s.Companies.Create(r.Context(), p, companies.CreateInput{
		OwnerID:   domain.UserID(req.OwnerId),
		CNPJ:      req.CNPJ,
		TradeName: req.TradeName,
		LegalName: req.LegalName,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"company": companyFromDomain(c)})
}

func (s *Server) ListMyCompanies(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	cs, err := s.Companies.ListMine(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]Company, 0, len(cs))
	for _, c := range cs {
		out = append(out, companyFromDomain(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": out})
}

func (s *Server) GetCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	c, err := s.Companies.Get(r.Context(), p, domain.CompanyID(chi.URLParam(r, "companyId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": companyFromDomain(c)})
}

func (s *Server) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req UpdateCompanyRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	c, err := s.Companies.Update(r.Context(), p, domain.CompanyID(chi.URLParam(r, "companyId")), companies.UpdateInput{
		TradeName: optionalFromNullable(req.TradeName),
		LegalName: optionalFromNullable(req.LegalName),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"company": companyFromDomain(c)})
}

func (s *Server) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if err := s.Companies.Delete(r.Context(), p, domain.CompanyID(chi.URLParam(r, "companyId"))); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
