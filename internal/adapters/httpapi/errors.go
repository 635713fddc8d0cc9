package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/errreport"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type ErrorBody struct {
	Code      string                            `json:"code"`
	Message   string                            `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]         `json:"requestId,omitempty"`
}

// writeError writes the envelope and reports the failure to the request's Sentry hub.
func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	errreport.Capture(sentry.GetHubFromContext(r.Context()), r, status, code, errors.New(code+": "+message))
	writeEnvelope(w, r, status, code, message, details)
}

// writeEnvelope writes the envelope without reporting. Used for unknown routes
// and readiness so scanners and health checks do not flood error reporting.
func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(er)
}

// writeAppError maps service errors onto the envelope. Anything that is not an
// *apperr.Error becomes 500 INTERNAL without leaking its text. Every 5xx is
// logged with its cause.
func writeAppError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status, code, message := http.StatusInternalServerError, "INTERNAL", "internal server error"
	var details map[string]any
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status, code, message, details = ae.Status, ae.Code, ae.Message, ae.Details
	}

	if status >= 500 && log != nil {
		fields := []zap.Field{
			zap.Error(err),
			zap.String("code", code),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if ae != nil && ae.Err != nil {
			fields = append(fields, zap.NamedError("cause", ae.Err))
		}
		log.Error("request failed", fields...)
	}
	errreport.Capture(sentry.GetHubFromContext(r.Context()), r, status, code, err)
	writeEnvelope(w, r, status, code, message, details)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
