package userrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.UserID]userrepo.User
	idByEmail map[string]domain.UserID
	idByCPF   map[string]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.UserID]userrepo.User),
		idByEmail: make(map[string]domain.UserID),
		idByCPF:   make(map[string]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.idByEmail[emailKey(u.Email)]; ok {
		return userrepo.ErrEmailTaken
	}
	if _, ok := r.idByCPF[u.CPF]; ok && u.CPF != "" {
		return userrepo.ErrCPFTaken
	}

	r.byID[u.ID] = cloneUser(u)
	r.idByEmail[emailKey(u.Email)] = u.ID
	if u.CPF != "" {
		r.idByCPF[u.CPF] = u.ID
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, u userrepo.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[u.ID]
	if !ok {
		return userrepo.ErrNotFound
	}
	if owner, ok := r.idByEmail[emailKey(u.Email)]; ok && owner != u.ID {
		return userrepo.ErrEmailTaken
	}
	if owner, ok := r.idByCPF[u.CPF]; ok && owner != u.ID && u.CPF != "" {
		return userrepo.ErrCPFTaken
	}

	delete(r.idByEmail, emailKey(existing.Email))
	delete(r.idByCPF, existing.CPF)
	r.byID[u.ID] = cloneUser(u)
	r.idByEmail[emailKey(u.Email)] = u.ID
	if u.CPF != "" {
		r.idByCPF[u.CPF] = u.ID
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.UserID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[id]
	if !ok {
		return userrepo.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.idByEmail, emailKey(existing.Email))
	delete(r.idByCPF, existing.CPF)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[emailKey(email)]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) List(ctx context.Context) ([]userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]userrepo.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		ni := strings.ToLower(out[i].Name)
		nj := strings.ToLower(out[j].Name)
		if ni == nj {
			return string(out[i].ID) < string(out[j].ID)
		}
		return ni < nj
	})
	return out, nil
}

func emailKey(email string) string {
	return domain.NormalizeEmail(email)
}

func cloneUser(u userrepo.User) userrepo.User {
	out := u
	out.Roles = append([]domain.Role(nil), u.Roles...)
	return out
}
