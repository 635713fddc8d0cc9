package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/errreport"
)

// RouterOptions configures cross-cutting middleware.
type RouterOptions struct {
	// AuthMiddleware authenticates every route except health checks and /auth/*. Required.
	AuthMiddleware func(http.Handler) http.Handler
	// RateLimiter guards /auth/register and /auth/login. Nil disables it.
	RateLimiter *RateLimiter
	// CORSAllowedOrigins enables CORS for the listed origins when non-empty.
	CORSAllowedOrigins []string
	// Ready backs /readyz. Nil means always ready.
	Ready func(ctx context.Context) error
	// Sentry receives panics and failed requests. Nil disables reporting.
	Sentry *sentry.Hub
	Log    *zap.Logger
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)
	hub := opts.Sentry
	if hub == nil {
		hub = sentry.NewHub(nil, sentry.NewScope())
	}
	r.Use(errreport.Middleware(hub))
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id", "Retry-After", "Idempotent-Replayed"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health endpoints are unauthenticated (used for infra checks).
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				log.Warn("readiness check failed", zap.Error(err))
				writeEnvelope(w, req, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/auth", func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Middleware)
		}
		r.Post("/register", s.Register)
		r.Post("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(opts.AuthMiddleware)

		admin := RequireRole(domain.RoleAdmin)
		passengerOrAdmin := RequireRole(domain.RoleAdmin, domain.RolePassenger)
		companyOrAdmin := RequireRole(domain.RoleAdmin, domain.RoleCompany)
		passenger := RequireRole(domain.RolePassenger)

		r.Get("/users/me", s.GetMe)
		r.Post("/users/me/role/{role}", s.SwitchRole)
		r.With(admin).Get("/users", s.ListUsers)
		r.Route("/users/{userId}", func(r chi.Router) {
			r.Use(passengerOrAdmin)
			r.Get("/", s.GetUser)
			r.Patch("/", s.UpdateUser)
			r.Delete("/", s.DeleteUser)
			r.Post("/document", s.UploadDocument)
			r.Get("/document", s.GetDocument)
		})

		r.With(passengerOrAdmin).Post("/companies", s.CreateCompany)
		r.With(RequireRole(domain.RoleCompany)).Get("/companies/mine", s.ListMyCompanies)
		r.Route("/companies/{companyId}", func(r chi.Router) {
			r.Use(companyOrAdmin)
			r.Get("/", s.GetCompany)
			r.Patch("/", s.UpdateCompany)
			r.Delete("/", s.DeleteCompany)
			r.Post("/trips", s.CreateTrip)
		})

		r.Get("/trips", s.SearchTrips)
		r.Route("/trips/{tripId}", func(r chi.Router) {
			r.Get("/", s.GetTrip)
			r.With(companyOrAdmin).Patch("/", s.UpdateTrip)
			r.With(companyOrAdmin).Delete("/", s.DeleteTrip)
			r.With(passenger).Post("/tickets", s.PurchaseTicket)
		})

		r.With(passenger).Get("/tickets/mine", s.ListMyTickets)
		r.Route("/tickets/{ticketId}", func(r chi.Router) {
			r.Use(passengerOrAdmin)
			r.Get("/", s.GetTicket)
			r.Post("/pay", s.PayTicket)
			r.Post("/cancel", s.CancelTicket)
		})

		r.With(admin).Get("/audit-logs", s.ListAuditLogs)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, req, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}
