package triprepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
)

// Repo is a Postgres implementation of triprepo.Repository.
// Seat counters are adjusted with single conditional UPDATEs so concurrent purchases never oversell.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectTrip = `
	SELECT id, company_id, origin, destination, departure_at, price_cents,
	       seats_total, seats_available, assigned_seating, created_at, updated_at
	FROM trips
`

func (r *Repo) Create(ctx context.Context, t triprepo.Trip) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(t.ID))
	if err != nil {
		return fmt.Errorf("invalid trip id: %w", err)
	}
	company, err := uuid.Parse(string(t.CompanyID))
	if err != nil {
		return fmt.Errorf("invalid company id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO trips (
			id, company_id, origin, destination, departure_at, price_cents,
			seats_total, seats_available, assigned_seating, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		id,
		company,
		t.Origin,
		t.Destination,
		t.DepartureAt.UTC(),
		t.PriceCents,
		t.SeatsTotal,
		t.SeatsAvailable,
		t.AssignedSeating,
		t.CreatedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "trips_pkey" {
			return triprepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, t triprepo.Trip) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(t.ID))
	if err != nil {
		return triprepo.ErrNotFound
	}
	// Right-hand sides see the old row, so seats_total - seats_available is the sold count.
	ct, err := r.pool.Exec(ctx, `
		UPDATE trips
		SET origin = $2,
		    destination = $3,
		    departure_at = $4,
		    price_cents = $5,
		    seats_available = $6 - (seats_total - seats_available),
		    seats_total = $6,
		    assigned_seating = $7,
		    updated_at = $8
		WHERE id = $1
		  AND $6 >= seats_total - seats_available
	`,
		id,
		t.Origin,
		t.Destination,
		t.DepartureAt.UTC(),
		t.PriceCents,
		t.SeatsTotal,
		t.AssignedSeating,
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.missOr(ctx, id, triprepo.ErrSeatsBelowSold)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.TripID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1`, tid)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode && pe.ConstraintName == "tickets_trip_id_fkey" {
			return triprepo.ErrHasTickets
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return triprepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	if r.pool == nil {
		return triprepo.Trip{}, errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	return scanTrip(r.pool.QueryRow(ctx, selectTrip+` WHERE id = $1`, tid))
}

func (r *Repo) Search(ctx context.Context, f triprepo.SearchFilter) ([]triprepo.Trip, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	where := []string{}
	args := []any{}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.CompanyID != "" {
		cid, err := uuid.Parse(string(f.CompanyID))
		if err != nil {
			return []triprepo.Trip{}, nil
		}
		add("company_id = $%d", cid)
	}
	if o := strings.TrimSpace(f.Origin); o != "" {
		add("lower(origin) = lower($%d)", o)
	}
	if d := strings.TrimSpace(f.Destination); d != "" {
		add("lower(destination) = lower($%d)", d)
	}
	if !f.DepartureFrom.IsZero() {
		add("departure_at >= $%d", f.DepartureFrom.UTC())
	}
	if !f.DepartureTo.IsZero() {
		add("departure_at < $%d", f.DepartureTo.UTC())
	}

	q := selectTrip
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY departure_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]triprepo.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) ReserveSeat(ctx context.Context, id domain.TripID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE trips
		SET seats_available = seats_available - 1
		WHERE id = $1 AND seats_available > 0
	`, tid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.missOr(ctx, tid, triprepo.ErrSoldOut)
	}
	return nil
}

func (r *Repo) ReleaseSeat(ctx context.Context, id domain.TripID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE trips
		SET seats_available = LEAST(seats_available + 1, seats_total)
		WHERE id = $1
	`, tid)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return triprepo.ErrNotFound
	}
	return nil
}

// missOr returns ErrNotFound when the trip is gone, otherwise cause.
func (r *Repo) missOr(ctx context.Context, id uuid.UUID, cause error) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return triprepo.ErrNotFound
	}
	return cause
}

func scanTrip(row interface {
	Scan(dest ...any) error
}) (triprepo.Trip, error) {
	var (
		id, company uuid.UUID
		t           triprepo.Trip
	)
	if err := row.Scan(
		&id,
		&company,
		&t.Origin,
		&t.Destination,
		&t.DepartureAt,
		&t.PriceCents,
		&t.SeatsTotal,
		&t.SeatsAvailable,
		&t.AssignedSeating,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return triprepo.Trip{}, triprepo.ErrNotFound
		}
		return triprepo.Trip{}, err
	}
	t.ID = domain.TripID(id.String())
	t.CompanyID = domain.CompanyID(company.String())
	t.DepartureAt = t.DepartureAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
