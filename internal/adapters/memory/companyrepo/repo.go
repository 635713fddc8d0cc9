package companyrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
)

// Repo is an in-memory implementation of companyrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID     map[domain.CompanyID]companyrepo.Company
	idByCNPJ map[string]domain.CompanyID
}

func NewRepo() *Repo {
	return &Repo{
		byID:     make(map[domain.CompanyID]companyrepo.Company),
		idByCNPJ: make(map[string]domain.CompanyID),
	}
}

func (r *Repo) Create(ctx context.Context, c companyrepo.Company) error {
	_ = ctx
	if c.ID == "" {
		return companyrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[c.ID]; ok {
		return companyrepo.ErrAlreadyExists
	}
	if _, ok := r.idByCNPJ[c.CNPJ]; ok {
		return companyrepo.ErrCNPJTaken
	}
	r.byID[c.ID] = c
	r.idByCNPJ[c.CNPJ] = c.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, c companyrepo.Company) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[c.ID]
	if !ok {
		return companyrepo.ErrNotFound
	}
	if owner, ok := r.idByCNPJ[c.CNPJ]; ok && owner != c.ID {
		return companyrepo.ErrCNPJTaken
	}
	delete(r.idByCNPJ, existing.CNPJ)
	r.byID[c.ID] = c
	r.idByCNPJ[c.CNPJ] = c.ID
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.CompanyID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return companyrepo.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.idByCNPJ, existing.CNPJ)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.CompanyID) (companyrepo.Company, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return companyrepo.Company{}, companyrepo.ErrNotFound
	}
	return c, nil
}

func (r *Repo) ListByOwner(ctx context.Context, owner domain.UserID) ([]companyrepo.Company, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]companyrepo.Company, 0)
	for _, c := range r.byID {
		if c.OwnerID == owner {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ni := strings.ToLower(out[i].TradeName)
		nj := strings.ToLower(out[j].TradeName)
		if ni == nj {
			return string(out[i].ID) < string(out[j].ID)
		}
		return ni < nj
	})
	return out, nil
}
