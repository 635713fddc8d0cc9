package ticketrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
)

// Repo is a Postgres implementation of ticketrepo.Repository.
// Seat uniqueness is enforced by the partial index tickets_trip_seat_active_unique.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const selectTicket = `
	SELECT id, trip_id, passenger_id, status, seat, amount_paid_cents, purchased_at, updated_at
	FROM tickets
`

func (r *Repo) Create(ctx context.Context, t ticketrepo.Ticket) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(t.ID))
	if err != nil {
		return fmt.Errorf("invalid ticket id: %w", err)
	}
	trip, err := uuid.Parse(string(t.TripID))
	if err != nil {
		return fmt.Errorf("invalid trip id: %w", err)
	}
	passenger, err := uuid.Parse(string(t.PassengerID))
	if err != nil {
		return fmt.Errorf("invalid passenger id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO tickets (id, trip_id, passenger_id, status, seat, amount_paid_cents, purchased_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		id,
		trip,
		passenger,
		string(t.Status),
		t.Seat,
		t.AmountPaidCents,
		t.PurchasedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, t ticketrepo.Ticket) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(t.ID))
	if err != nil {
		return ticketrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = $2,
		    seat = $3,
		    amount_paid_cents = $4,
		    updated_at = $5
		WHERE id = $1
	`,
		id,
		string(t.Status),
		t.Seat,
		t.AmountPaidCents,
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() == 0 {
		return ticketrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) Transition(ctx context.Context, id domain.TicketID, from, to domain.TicketStatus, at time.Time) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(id))
	if err != nil {
		return ticketrepo.ErrNotFound
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`, tid, string(from), string(to), at.UTC())
	if err != nil {
		return mapWriteError(err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id = $1)`, tid).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ticketrepo.ErrNotFound
	}
	return ticketrepo.ErrStatusChanged
}

func (r *Repo) GetByID(ctx context.Context, id domain.TicketID) (ticketrepo.Ticket, error) {
	if r.pool == nil {
		return ticketrepo.Ticket{}, errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(id))
	if err != nil {
		return ticketrepo.Ticket{}, ticketrepo.ErrNotFound
	}
	return scanTicket(r.pool.QueryRow(ctx, selectTicket+` WHERE id = $1`, tid))
}

func (r *Repo) ListByPassenger(ctx context.Context, passenger domain.UserID) ([]ticketrepo.Ticket, error) {
	pid, err := uuid.Parse(string(passenger))
	if err != nil {
		return []ticketrepo.Ticket{}, nil
	}
	return r.list(ctx, `WHERE passenger_id = $1`, pid)
}

func (r *Repo) ListByTrip(ctx context.Context, trip domain.TripID) ([]ticketrepo.Ticket, error) {
	tid, err := uuid.Parse(string(trip))
	if err != nil {
		return []ticketrepo.Ticket{}, nil
	}
	return r.list(ctx, `WHERE trip_id = $1`, tid)
}

func (r *Repo) SeatTaken(ctx context.Context, trip domain.TripID, seat int) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	tid, err := uuid.Parse(string(trip))
	if err != nil {
		return false, nil
	}
	var taken bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tickets
			WHERE trip_id = $1 AND seat = $2 AND status <> 'CANCELED'
		)
	`, tid, seat).Scan(&taken)
	return taken, err
}

func (r *Repo) list(ctx context.Context, where string, arg any) ([]ticketrepo.Ticket, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, selectTicket+where+` ORDER BY purchased_at, id`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ticketrepo.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicket(row interface {
	Scan(dest ...any) error
}) (ticketrepo.Ticket, error) {
	var (
		id, trip, passenger uuid.UUID
		status              string
		seat                *int32
		t                   ticketrepo.Ticket
	)
	if err := row.Scan(&id, &trip, &passenger, &status, &seat, &t.AmountPaidCents, &t.PurchasedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ticketrepo.Ticket{}, ticketrepo.ErrNotFound
		}
		return ticketrepo.Ticket{}, err
	}
	t.ID = domain.TicketID(id.String())
	t.TripID = domain.TripID(trip.String())
	t.PassengerID = domain.UserID(passenger.String())
	t.Status = domain.TicketStatus(status)
	if seat != nil {
		v := int(*seat)
		t.Seat = &v
	}
	t.PurchasedAt = t.PurchasedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "tickets_trip_seat_active_unique":
			return ticketrepo.ErrSeatTaken
		case "tickets_pkey":
			return ticketrepo.ErrAlreadyExists
		}
	}
	return err
}
