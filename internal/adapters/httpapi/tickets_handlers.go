package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/tickets"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
)

// PurchaseTicket buys a ticket on a trip.
//
// With an Idempotency-Key header the first request binds the key to its body:
// - a repeat with the same body replays the stored 201
// - a repeat with another body is rejected with 409 IDEMPOTENCY_KEY_REUSE
// - a repeat while the first is still running is rejected with 409 IDEMPOTENCY_IN_PROGRESS
// - a failed attempt releases the key, so a retry runs the purchase again
func (s *Server) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req PurchaseTicketRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	var (
		scope       idempotency.Scope
		requestHash string
	)
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); s.Idem != nil && key != "" {
		h, err := hashBody(req)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		scope = idempotency.Scope{Key: idempotency.Key(key), Subject: p.UserID, Route: r.Method + " " + r.URL.Path}
		requestHash = h
		existing, found, err := s.Idem.Claim(r.Context(), scope, requestHash, s.now())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if found && existing.RequestHash != requestHash {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
			return
		}
		if found && !existing.Completed() {
			writeError(w, r, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "a request with this idempotency key is still in progress", nil)
			return
		}
		if found {
			w.Header().Set("Content-Type", existing.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(existing.StatusCode)
			_, _ = w.Write(existing.Body)
			return
		}
	}

	t, err := s.Tickets.Purchase(r.Context(), p, domain.TripID(chi.URLParam(r, "tripId")), tickets.PurchaseInput{Seat: req.Seat})
	if err != nil {
		if scope.Key != "" {
			// The request context may already be canceled.
			if rerr := s.Idem.Release(context.WithoutCancel(r.Context()), scope, requestHash); rerr != nil {
				s.logger().Warn("release idempotency key", zap.Error(rerr), zap.String("key", string(scope.Key)))
			}
		}
		s.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(map[string]any{"ticket": ticketFromDomain(t)})
	if scope.Key != "" {
		if err := s.Idem.Complete(r.Context(), scope, requestHash, http.StatusCreated, "application/json", buf.Bytes()); err != nil {
			s.logger().Warn("store idempotent response", zap.Error(err), zap.String("ticket_id", string(t.ID)))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) ListMyTickets(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	ts, err := s.Tickets.ListMine(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]Ticket, 0, len(ts))
	for _, t := range ts {
		out = append(out, ticketFromDomain(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": out})
}

func (s *Server) GetTicket(w http.ResponseWriter, r *http.Request) {
	s.ticketAction(w, r, s.Tickets.Get)
}

func (s *Server) PayTicket(w http.ResponseWriter, r *http.Request) {
	s.ticketAction(w, r, s.Tickets.Pay)
}

func (s *Server) CancelTicket(w http.ResponseWriter, r *http.Request) {
	s.ticketAction(w, r, s.Tickets.Cancel)
}

func (s *Server) ticketAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, p domain.Principal, id domain.TicketID) (domain.Ticket, error)) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	t, err := action(r.Context(), p, domain.TicketID(chi.URLParam(r, "ticketId")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticketFromDomain(t)})
}

func hashBody(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
