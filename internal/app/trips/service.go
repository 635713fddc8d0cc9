// Package trips schedules departures for companies and lets passengers find them.
package trips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
)

const (
	DefaultSearchLimit = 100
	MaxSearchLimit     = 500
)

type Service struct {
	trips     triprepo.Repository
	companies companyrepo.Repository
	tickets   ticketrepo.Repository
	clk       clockport.Clock
	audit     *audit.Logger

	newTripID func() domain.TripID
}

func NewService(tripsRepo triprepo.Repository, companiesRepo companyrepo.Repository, ticketsRepo ticketrepo.Repository, clk clockport.Clock, auditLog *audit.Logger) *Service {
	return &Service{
		trips:     tripsRepo,
		companies: companiesRepo,
		tickets:   ticketsRepo,
		clk:       clk,
		audit:     auditLog,
		newTripID: func() domain.TripID {
			return domain.TripID(uuid.NewString())
		},
	}
}

// SetNewTripIDForTest overrides trip ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTripIDForTest(fn func() domain.TripID) {
	if fn != nil {
		s.newTripID = fn
	}
}

func (s *Service) Create(ctx context.Context, p domain.Principal, companyID domain.CompanyID, in CreateInput) (domain.Trip, error) {
	c, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, companyrepo.ErrNotFound) {
			return domain.Trip{}, companyNotFound()
		}
		return domain.Trip{}, err
	}
	if c.OwnerID != p.UserID && !p.IsAdmin() {
		return domain.Trip{}, companyNotFound()
	}

	now := s.clk.Now()
	t := triprepo.Trip{
		ID:              s.newTripID(),
		CompanyID:       companyID,
		Origin:          domain.NormalizeHumanName(in.Origin),
		Destination:     domain.NormalizeHumanName(in.Destination),
		DepartureAt:     in.DepartureAt.UTC(),
		PriceCents:      in.PriceCents,
		SeatsTotal:      in.SeatsTotal,
		SeatsAvailable:  in.SeatsTotal,
		AssignedSeating: in.AssignedSeating,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if details := s.validate(t, now); len(details) > 0 {
		return domain.Trip{}, apperr.Validation("invalid trip", details)
	}

	if err := s.trips.Create(ctx, t); err != nil {
		return domain.Trip{}, err
	}
	s.audit.Log(ctx, "Trip", string(t.ID), domain.AuditActionCreate, fmt.Sprintf("company=%s", companyID))
	return toDomain(t), nil
}

func (s *Service) Get(ctx context.Context, id domain.TripID) (domain.Trip, error) {
	t, err := s.trips.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return domain.Trip{}, tripNotFound()
		}
		return domain.Trip{}, err
	}
	return toDomain(t), nil
}

// Search lists trips ordered by departure.
func (s *Service) Search(ctx context.Context, in SearchInput) ([]domain.Trip, error) {
	if in.Limit < 0 {
		return nil, apperr.Validation("invalid limit", map[string]any{"limit": "must be positive"})
	}
	f := triprepo.SearchFilter{
		CompanyID:   domain.CompanyID(strings.TrimSpace(in.CompanyID)),
		Origin:      domain.NormalizeHumanName(in.Origin),
		Destination: domain.NormalizeHumanName(in.Destination),
		Limit:       in.Limit,
	}
	if f.Limit == 0 {
		f.Limit = DefaultSearchLimit
	}
	if f.Limit > MaxSearchLimit {
		f.Limit = MaxSearchLimit
	}
	if in.DepartureDate.IsZero() {
		f.DepartureFrom = s.clk.Now()
	} else {
		d := in.DepartureDate.UTC()
		f.DepartureFrom = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		f.DepartureTo = f.DepartureFrom.AddDate(0, 0, 1)
	}

	ts, err := s.trips.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Trip, 0, len(ts))
	for _, t := range ts {
		out = append(out, toDomain(t))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, p domain.Principal, id domain.TripID, in UpdateInput) (domain.Trip, error) {
	t, err := s.loadManaged(ctx, p, id)
	if err != nil {
		return domain.Trip{}, err
	}

	details := map[string]any{}
	rejectNull := func(field string, specified, isNull bool) bool {
		if specified && isNull {
			details[field] = "must not be null"
			return false
		}
		return specified
	}
	if rejectNull("origin", in.Origin.IsSpecified(), in.Origin.IsNull()) {
		t.Origin = domain.NormalizeHumanName(in.Origin.Value())
	}
	if rejectNull("destination", in.Destination.IsSpecified(), in.Destination.IsNull()) {
		t.Destination = domain.NormalizeHumanName(in.Destination.Value())
	}
	if rejectNull("departureAt", in.DepartureAt.IsSpecified(), in.DepartureAt.IsNull()) {
		t.DepartureAt = in.DepartureAt.Value().UTC()
	}
	if rejectNull("priceCents", in.PriceCents.IsSpecified(), in.PriceCents.IsNull()) {
		t.PriceCents = in.PriceCents.Value()
	}
	if rejectNull("seatsTotal", in.SeatsTotal.IsSpecified(), in.SeatsTotal.IsNull()) {
		t.SeatsTotal = in.SeatsTotal.Value()
	}
	seatingChanged := false
	if rejectNull("assignedSeating", in.AssignedSeating.IsSpecified(), in.AssignedSeating.IsNull()) {
		seatingChanged = t.AssignedSeating != in.AssignedSeating.Value()
		t.AssignedSeating = in.AssignedSeating.Value()
	}

	now := s.clk.Now()
	departureChanged := in.DepartureAt.HasValue()
	for k, v := range s.validate(t, now) {
		if k == "departureAt" && !departureChanged {
			continue
		}
		details[k] = v
	}
	if len(details) > 0 {
		return domain.Trip{}, apperr.Validation("invalid trip update", details)
	}

	tickets, err := s.tickets.ListByTrip(ctx, id)
	if err != nil {
		return domain.Trip{}, err
	}
	active := 0
	for _, tk := range tickets {
		if tk.Status == domain.TicketStatusCanceled {
			continue
		}
		active++
		if tk.Seat != nil && *tk.Seat > t.SeatsTotal {
			return domain.Trip{}, seatsBelowSold()
		}
	}
	if seatingChanged && active > 0 {
		return domain.Trip{}, apperr.Unprocessable("TRIP_HAS_TICKETS", "Seating mode cannot change once tickets are sold.")
	}

	t.UpdatedAt = now
	if err := s.trips.Update(ctx, t); err != nil {
		switch {
		case errors.Is(err, triprepo.ErrSeatsBelowSold):
			return domain.Trip{}, seatsBelowSold()
		case errors.Is(err, triprepo.ErrNotFound):
			return domain.Trip{}, tripNotFound()
		default:
			return domain.Trip{}, err
		}
	}
	s.audit.Log(ctx, "Trip", string(id), domain.AuditActionUpdate, "")
	return s.Get(ctx, id)
}

// Delete removes a trip that never sold a ticket, canceled ones included.
func (s *Service) Delete(ctx context.Context, p domain.Principal, id domain.TripID) error {
	if _, err := s.loadManaged(ctx, p, id); err != nil {
		return err
	}
	// The storage foreign key refuses a purchase that lands after this check.
	tickets, err := s.tickets.ListByTrip(ctx, id)
	if err != nil {
		return err
	}
	if len(tickets) > 0 {
		return tripHasTickets()
	}
	if err := s.trips.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, triprepo.ErrNotFound):
			return tripNotFound()
		case errors.Is(err, triprepo.ErrHasTickets):
			return tripHasTickets()
		}
		return err
	}
	s.audit.Log(ctx, "Trip", string(id), domain.AuditActionDelete, "")
	return nil
}

// loadManaged returns the trip when p owns its company or is an administrator.
func (s *Service) loadManaged(ctx context.Context, p domain.Principal, id domain.TripID) (triprepo.Trip, error) {
	t, err := s.trips.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return triprepo.Trip{}, tripNotFound()
		}
		return triprepo.Trip{}, err
	}
	if p.IsAdmin() {
		return t, nil
	}
	c, err := s.companies.GetByID(ctx, t.CompanyID)
	if err != nil && !errors.Is(err, companyrepo.ErrNotFound) {
		return triprepo.Trip{}, err
	}
	if err != nil || c.OwnerID != p.UserID {
		return triprepo.Trip{}, apperr.Forbidden("only the operating company can change this trip")
	}
	return t, nil
}

func (s *Service) validate(t triprepo.Trip, now time.Time) map[string]any {
	details := map[string]any{}
	if t.Origin == "" {
		details["origin"] = "must be non-empty"
	}
	if t.Destination == "" {
		details["destination"] = "must be non-empty"
	}
	if t.Origin != "" && strings.EqualFold(t.Origin, t.Destination) {
		details["destination"] = "must differ from origin"
	}
	if !t.DepartureAt.After(now) {
		details["departureAt"] = "must be in the future"
	}
	if t.PriceCents < 0 {
		details["priceCents"] = "must not be negative"
	}
	if t.SeatsTotal <= 0 {
		details["seatsTotal"] = "must be positive"
	}
	return details
}

func tripNotFound() *apperr.Error {
	return apperr.NotFound("TRIP_NOT_FOUND", "Trip not found.")
}

func companyNotFound() *apperr.Error {
	return apperr.NotFound("COMPANY_NOT_FOUND", "Company not found.")
}

func seatsBelowSold() *apperr.Error {
	return apperr.Unprocessable("SEATS_BELOW_SOLD", "Total seats cannot drop below the seats already sold.")
}

func toDomain(t triprepo.Trip) domain.Trip {
	return domain.Trip{
		ID:              t.ID,
		CompanyID:       t.CompanyID,
		Origin:          t.Origin,
		Destination:     t.Destination,
		DepartureAt:     t.DepartureAt,
		PriceCents:      t.PriceCents,
		SeatsTotal:      t.SeatsTotal,
		SeatsAvailable:  t.SeatsAvailable,
		AssignedSeating: t.AssignedSeating,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func tripHasTickets() *apperr.Error {
	return apperr.Unprocessable("TRIP_HAS_TICKETS", "Trips with tickets cannot be deleted.")
}
