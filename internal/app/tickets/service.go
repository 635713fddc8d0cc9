// Package tickets sells seats on trips and moves tickets through PENDING, PAID and CANCELED.
package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/events"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
)

// Events receives ticket lifecycle notifications. Delivery is best-effort.
type Events interface {
	TicketChanged(ctx context.Context, typ events.TicketEventType, t domain.Ticket) error
}

type PurchaseInput struct {
	// Seat is required on trips with assigned seating and must be nil otherwise.
	Seat *int
}

type Service struct {
	tickets ticketrepo.Repository
	trips   triprepo.Repository
	events  Events
	clk     clockport.Clock
	audit   *audit.Logger
	log     *zap.Logger

	newTicketID func() domain.TicketID
}

func NewService(ticketsRepo ticketrepo.Repository, tripsRepo triprepo.Repository, ev Events, clk clockport.Clock, auditLog *audit.Logger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		tickets: ticketsRepo,
		trips:   tripsRepo,
		events:  ev,
		clk:     clk,
		audit:   auditLog,
		log:     log,
		newTicketID: func() domain.TicketID {
			return domain.TicketID(uuid.NewString())
		},
	}
}

// SetNewTicketIDForTest overrides ticket ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTicketIDForTest(fn func() domain.TicketID) {
	if fn != nil {
		s.newTicketID = fn
	}
}

// Purchase reserves a seat and creates a PENDING ticket priced at the trip's current fare.
func (s *Service) Purchase(ctx context.Context, p domain.Principal, tripID domain.TripID, in PurchaseInput) (domain.Ticket, error) {
	if p.Role != domain.RolePassenger {
		return domain.Ticket{}, apperr.Forbidden("only passengers can buy tickets")
	}
	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return domain.Ticket{}, apperr.NotFound("TRIP_NOT_FOUND", "Trip not found.")
		}
		return domain.Ticket{}, err
	}
	now := s.clk.Now()
	if !trip.DepartureAt.After(now) {
		return domain.Ticket{}, tripDeparted()
	}

	if trip.AssignedSeating {
		if in.Seat == nil {
			return domain.Ticket{}, apperr.Validation("invalid seat", map[string]any{"seat": "is required for this trip"})
		}
		if *in.Seat < 1 || *in.Seat > trip.SeatsTotal {
			return domain.Ticket{}, apperr.Validation("invalid seat", map[string]any{"seat": fmt.Sprintf("must be between 1 and %d", trip.SeatsTotal)})
		}
		taken, err := s.tickets.SeatTaken(ctx, tripID, *in.Seat)
		if err != nil {
			return domain.Ticket{}, err
		}
		if taken {
			return domain.Ticket{}, seatTaken(*in.Seat)
		}
	} else if in.Seat != nil {
		return domain.Ticket{}, apperr.Validation("invalid seat", map[string]any{"seat": "this trip has no assigned seating"})
	}

	if err := s.trips.ReserveSeat(ctx, tripID); err != nil {
		switch {
		case errors.Is(err, triprepo.ErrSoldOut):
			return domain.Ticket{}, apperr.Unprocessable("TRIP_SOLD_OUT", "No seats are left on this trip.")
		case errors.Is(err, triprepo.ErrNotFound):
			return domain.Ticket{}, apperr.NotFound("TRIP_NOT_FOUND", "Trip not found.")
		default:
			return domain.Ticket{}, err
		}
	}

	var seat *int
	if in.Seat != nil {
		v := *in.Seat
		seat = &v
	}
	t := ticketrepo.Ticket{
		ID:              s.newTicketID(),
		TripID:          tripID,
		PassengerID:     p.UserID,
		Status:          domain.TicketStatusPending,
		Seat:            seat,
		AmountPaidCents: trip.PriceCents,
		PurchasedAt:     now,
		UpdatedAt:       now,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		s.releaseSeat(ctx, tripID)
		if errors.Is(err, ticketrepo.ErrSeatTaken) && seat != nil {
			return domain.Ticket{}, seatTaken(*seat)
		}
		return domain.Ticket{}, err
	}

	out := toDomain(t)
	s.audit.Log(ctx, "Ticket", string(t.ID), domain.AuditActionCreate, fmt.Sprintf("trip=%s", tripID))
	s.publish(ctx, events.TicketPurchased, out)
	return out, nil
}

func (s *Service) Get(ctx context.Context, p domain.Principal, id domain.TicketID) (domain.Ticket, error) {
	t, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.audit.Log(ctx, "Ticket", string(id), domain.AuditActionRead, "")
	return toDomain(t), nil
}

func (s *Service) ListMine(ctx context.Context, p domain.Principal) ([]domain.Ticket, error) {
	ts, err := s.tickets.ListByPassenger(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, 0, len(ts))
	for _, t := range ts {
		out = append(out, toDomain(t))
	}
	return out, nil
}

// Pay marks a PENDING ticket as PAID. No payment provider is involved.
func (s *Service) Pay(ctx context.Context, p domain.Principal, id domain.TicketID) (domain.Ticket, error) {
	t, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.Status != domain.TicketStatusPending {
		return domain.Ticket{}, invalidStatus(t.Status, "paid")
	}
	return s.transition(ctx, t, domain.TicketStatusPaid, events.TicketPaid)
}

// Cancel cancels a PENDING or PAID ticket before departure and returns its seat to the trip.
func (s *Service) Cancel(ctx context.Context, p domain.Principal, id domain.TicketID) (domain.Ticket, error) {
	t, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if t.Status == domain.TicketStatusCanceled {
		return domain.Ticket{}, invalidStatus(t.Status, "canceled")
	}
	trip, err := s.trips.GetByID(ctx, t.TripID)
	if err != nil && !errors.Is(err, triprepo.ErrNotFound) {
		return domain.Ticket{}, err
	}
	if err == nil && !trip.DepartureAt.After(s.clk.Now()) {
		return domain.Ticket{}, tripDeparted()
	}

	out, err := s.transition(ctx, t, domain.TicketStatusCanceled, events.TicketCanceled)
	if err != nil {
		return domain.Ticket{}, err
	}
	s.releaseSeat(ctx, t.TripID)
	return out, nil
}

func (s *Service) transition(ctx context.Context, t ticketrepo.Ticket, to domain.TicketStatus, typ events.TicketEventType) (domain.Ticket, error) {
	now := s.clk.Now()
	if err := s.tickets.Transition(ctx, t.ID, t.Status, to, now); err != nil {
		switch {
		case errors.Is(err, ticketrepo.ErrStatusChanged):
			return domain.Ticket{}, apperr.Conflict("TICKET_STATUS_CHANGED", "The ticket was changed by another request. Reload and try again.")
		case errors.Is(err, ticketrepo.ErrNotFound):
			return domain.Ticket{}, ticketNotFound()
		default:
			return domain.Ticket{}, err
		}
	}
	t.Status = to
	t.UpdatedAt = now
	out := toDomain(t)
	s.audit.Log(ctx, "Ticket", string(t.ID), domain.AuditActionUpdate, fmt.Sprintf("status=%s", to))
	s.publish(ctx, typ, out)
	return out, nil
}

// loadVisible returns the ticket when p bought it or is an administrator.
func (s *Service) loadVisible(ctx context.Context, p domain.Principal, id domain.TicketID) (ticketrepo.Ticket, error) {
	t, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ticketrepo.ErrNotFound) {
			return ticketrepo.Ticket{}, ticketNotFound()
		}
		return ticketrepo.Ticket{}, err
	}
	if t.PassengerID != p.UserID && !p.IsAdmin() {
		return ticketrepo.Ticket{}, ticketNotFound()
	}
	return t, nil
}

func (s *Service) releaseSeat(ctx context.Context, tripID domain.TripID) {
	if err := s.trips.ReleaseSeat(ctx, tripID); err != nil && !errors.Is(err, triprepo.ErrNotFound) {
		s.log.Error("release seat", zap.String("tripId", string(tripID)), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, typ events.TicketEventType, t domain.Ticket) {
	if s.events == nil {
		return
	}
	if err := s.events.TicketChanged(ctx, typ, t); err != nil {
		s.log.Warn("publish ticket event",
			zap.String("type", string(typ)),
			zap.String("ticketId", string(t.ID)),
			zap.Error(err),
		)
	}
}

func ticketNotFound() *apperr.Error {
	return apperr.NotFound("TICKET_NOT_FOUND", "Ticket not found.")
}

func tripDeparted() *apperr.Error {
	return apperr.Unprocessable("TRIP_DEPARTED", "The trip has already departed.")
}

func seatTaken(seat int) *apperr.Error {
	e := apperr.Conflict("SEAT_TAKEN", "The seat is already taken.")
	e.Details = map[string]any{"seat": seat}
	return e
}

func invalidStatus(status domain.TicketStatus, verb string) *apperr.Error {
	e := apperr.Unprocessable("INVALID_TICKET_STATUS", fmt.Sprintf("A %s ticket cannot be %s.", status, verb))
	e.Details = map[string]any{"status": string(status)}
	return e
}

func toDomain(t ticketrepo.Ticket) domain.Ticket {
	var seat *int
	if t.Seat != nil {
		v := *t.Seat
		seat = &v
	}
	return domain.Ticket{
		ID:              t.ID,
		TripID:          t.TripID,
		PassengerID:     t.PassengerID,
		Status:          t.Status,
		Seat:            seat,
		AmountPaidCents: t.AmountPaidCents,
		PurchasedAt:     t.PurchasedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}
