package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (tokens.Claims, error)
}

// UserLookup reloads the identity named by a token.
type UserLookup interface {
	GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT>.
//
// The token's subject is reloaded on every request and the role it was issued
// for must still be held, so revoking a role takes effect before expiry.
func NewAuthMiddleware(v TokenVerifier, users UserLookup, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}

			u, err := users.GetByID(r.Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, userrepo.ErrNotFound) {
					writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
					return
				}
				writeAppError(w, r, log, err)
				return
			}
			if !domain.Roles(u.Roles).Has(claims.Role) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "role no longer held", nil)
				return
			}

			p := domain.Principal{UserID: u.ID, Email: u.Email, Role: claims.Role}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r, p)))
		})
	}
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit subject via X-Debug-Subject and an acting role via
// X-Debug-Role (default PASSENGER). No token or role membership is checked.
// Do NOT use this in production deployments.
func NewDevAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get("X-Debug-Subject"))
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set X-Debug-Subject)", nil)
				return
			}
			role := domain.RolePassenger
			if v := r.Header.Get("X-Debug-Role"); v != "" {
				parsed, ok := domain.ParseRole(v)
				if !ok {
					writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "unknown X-Debug-Role", nil)
					return
				}
				role = parsed
			}

			p := domain.Principal{UserID: domain.UserID(sub), Email: sub, Role: role}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r, p)))
		})
	}
}

// RequireRole rejects callers whose acting role is not one of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing principal", nil)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, r, http.StatusForbidden, "FORBIDDEN", "role "+string(p.Role)+" may not access this resource", nil)
		})
	}
}

func withPrincipal(r *http.Request, p domain.Principal) context.Context {
	return audit.WithActor(WithPrincipal(r.Context(), p), p.Email)
}
