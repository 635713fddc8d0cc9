package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/app/auth"
	"github.com/omnibus-tickets/omnibus-api/internal/app/companies"
	"github.com/omnibus-tickets/omnibus-api/internal/app/documents"
	"github.com/omnibus-tickets/omnibus-api/internal/app/tickets"
	"github.com/omnibus-tickets/omnibus-api/internal/app/trips"
	"github.com/omnibus-tickets/omnibus-api/internal/app/users"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
)

// maxJSONBody bounds JSON request bodies. Document uploads have their own limit.
const maxJSONBody = 1 << 20

// Server holds the application services behind the HTTP routes.
type Server struct {
	Auth      *auth.Service
	Users     *users.Service
	Companies *companies.Service
	Trips     *trips.Service
	Tickets   *tickets.Service
	Documents *documents.Service
	Audit     *audit.Service

	// Idem enables Idempotency-Key replay on ticket purchases. Nil disables it.
	Idem  idempotency.Store
	Clock clockport.Clock
	Log   *zap.Logger
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeAppError(w, r, s.logger(), err)
}

// principal returns the caller. Routes that reach a handler without one are a
// wiring bug, so the 401 here only guards against misconfigured routers.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
	}
	return p, ok
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return err
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large", nil)
	case errors.Is(err, openapi_types.ErrValidationEmail):
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", map[string]any{"email": "must be a valid email address"})
	default:
		writeError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body", map[string]any{"body": err.Error()})
	}
}

func (s *Server) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}
