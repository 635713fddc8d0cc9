package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/omnibus-tickets/omnibus-api/internal/app/trips"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

func (s *Server) CreateTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req CreateTripRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	t, err := s.Trips.Create(r.Context(), p, domain.CompanyID(chi.URLParam(r, "companyId")), trips.CreateInput{
		Origin:          req.Origin,
		Destination:     req.Destination,
		DepartureAt:     req.DepartureAt,
		PriceCents:      req.PriceCents,
		SeatsTotal:      req.SeatsTotal,
		AssignedSeating: req.AssignedSeating,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"trip": tripFromDomain(t)})
}

// SearchTrips supports ?origin=&destination=&date=YYYY-MM-DD&companyId=&limit=.
func (s *Server) SearchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := trips.SearchInput{
		CompanyID:   q.Get("companyId"),
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
	}
	if v := q.Get("date"); v != "" {
		d, err := time.Parse(openapi_types.DateFormat, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid search", map[string]any{"date": "must be YYYY-MM-DD"})
			return
		}
		in.DepartureDate = d
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid search", map[string]any{"limit": "must be a positive integer"})
			return
		}
		in.Limit = n
	}

	ts, err := s.Trips.Search(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]Trip, 0, len(ts))
	for _, t := range ts {
		out = append(out, tripFromDomain(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": out})
}

func (s *Server) GetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.Trips.Get(r.Context(), domain.TripID(chi.URLParam(r, "tripId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trip": tripFromDomain(t)})
}

func (s *Server) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req UpdateTripRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	t, err := s.Trips.Update(r.Context(), p, domain.TripID(chi.URLParam(r, "tripId")), trips.UpdateInput{
		Origin:          optionalFromNullable(req.Origin),
		Destination:     optionalFromNullable(req.Destination),
		DepartureAt:     optionalFromNullable(req.DepartureAt),
		PriceCents:      optionalFromNullable(req.PriceCents),
		SeatsTotal:      optionalFromNullable(req.SeatsTotal),
		AssignedSeating: optionalFromNullable(req.AssignedSeating),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trip": tripFromDomain(t)})
}

func (s *Server) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if err := s.Trips.Delete(r.Context(), p, domain.TripID(chi.URLParam(r, "tripId"))); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
