package companyrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
)

// Repo is a Postgres implementation of companyrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectCompany = `
	SELECT id, owner_id, cnpj, trade_name, legal_name, created_at, updated_at
	FROM companies
`

func (r *Repo) Create(ctx context.Context, c companyrepo.Company) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		return fmt.Errorf("invalid company id: %w", err)
	}
	owner, err := uuid.Parse(string(c.OwnerID))
	if err != nil {
		return fmt.Errorf("invalid owner id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO companies (id, owner_id, cnpj, trade_name, legal_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id,
		owner,
		c.CNPJ,
		c.TradeName,
		c.LegalName,
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, c companyrepo.Company) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(c.ID))
	if err != nil {
		return companyrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE companies
		SET cnpj = $2,
		    trade_name = $3,
		    legal_name = $4,
		    updated_at = $5
		WHERE id = $1
	`,
		id,
		c.CNPJ,
		c.TradeName,
		c.LegalName,
		c.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return companyrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.CompanyID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	cid, err := uuid.Parse(string(id))
	if err != nil {
		return companyrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, cid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return companyrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.CompanyID) (companyrepo.Company, error) {
	if r.pool == nil {
		return companyrepo.Company{}, errors.New("nil postgres pool")
	}
	cid, err := uuid.Parse(string(id))
	if err != nil {
		return companyrepo.Company{}, companyrepo.ErrNotFound
	}
	return scanCompany(r.pool.QueryRow(ctx, selectCompany+` WHERE id = $1`, cid))
}

func (r *Repo) ListByOwner(ctx context.Context, owner domain.UserID) ([]companyrepo.Company, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	oid, err := uuid.Parse(string(owner))
	if err != nil {
		return []companyrepo.Company{}, nil
	}
	rows, err := r.pool.Query(ctx, selectCompany+` WHERE owner_id = $1 ORDER BY lower(trade_name), id`, oid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]companyrepo.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCompany(row interface {
	Scan(dest ...any) error
}) (companyrepo.Company, error) {
	var (
		id, owner uuid.UUID
		c         companyrepo.Company
	)
	if err := row.Scan(&id, &owner, &c.CNPJ, &c.TradeName, &c.LegalName, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return companyrepo.Company{}, companyrepo.ErrNotFound
		}
		return companyrepo.Company{}, err
	}
	c.ID = domain.CompanyID(id.String())
	c.OwnerID = domain.UserID(owner.String())
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "companies_cnpj_unique":
			return companyrepo.ErrCNPJTaken
		case "companies_pkey":
			return companyrepo.ErrAlreadyExists
		}
	}
	return err
}
