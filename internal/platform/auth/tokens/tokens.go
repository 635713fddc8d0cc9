// Package tokens issues and validates role-scoped HS256 access tokens.
//
// The service is stateless: every token carries the subject, the active role and
// an absolute expiry, and validation only needs the shared secret and a clock.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
)

var (
	// ErrRoleNotHeld is returned by Issue when the identity does not hold the requested role.
	ErrRoleNotHeld = errors.New("tokens: role not held by identity")

	// ErrSecretMissing is returned by Issue when no signing secret is configured.
	ErrSecretMissing = errors.New("tokens: signing secret not configured")

	// ErrInvalidToken is returned by Validate/Verify for any token that cannot be trusted:
	// bad signature, wrong issuer, expired, malformed or carrying an unknown role.
	ErrInvalidToken = errors.New("tokens: invalid or expired token")
)

// Identity is the subject a credential is issued for.
type Identity struct {
	ID    domain.UserID
	Email string
	Roles domain.Roles
}

// Credential is an issued token together with what it grants.
type Credential struct {
	Token     string
	Role      domain.Role
	ExpiresAt time.Time
}

// Claims is the validated content of a token.
type Claims struct {
	Subject   domain.UserID
	Email     string
	Role      domain.Role
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates tokens. It is safe for concurrent use.
type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clk    clockport.Clock
}

func NewService(cfg config.TokenConfig, clk clockport.Clock) *Service {
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = config.DefaultTokenIssuer
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = config.DefaultTokenTTL
	}
	return &Service{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: issuer,
		ttl:    ttl,
		clk:    clk,
	}
}

// Issue signs a credential for id acting as role.
//
// The expiry is the absolute instant now+TTL; it does not depend on the server's time zone.
func (s *Service) Issue(id Identity, role domain.Role) (Credential, error) {
	if !role.Valid() || !id.Roles.Has(role) {
		return Credential{}, fmt.Errorf("%w: %s", ErrRoleNotHeld, role)
	}
	if len(s.secret) == 0 {
		return Credential{}, ErrSecretMissing
	}
	if id.ID == "" {
		return Credential{}, errors.New("tokens: identity has no id")
	}

	// JWT NumericDate has second precision; truncate so ExpiresAt matches the signed claim.
	now := s.clk.Now().UTC().Truncate(time.Second)
	exp := now.Add(s.ttl)
	claims := tokenClaims{
		Email: id.Email,
		Role:  string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(id.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("tokens: sign: %w", err)
	}
	return Credential{Token: signed, Role: role, ExpiresAt: exp}, nil
}

// Validate checks token and returns its subject.
func (s *Service) Validate(token string) (domain.UserID, error) {
	c, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// Verify checks token and returns all of its claims.
//
// Callers must still confirm that the subject exists and holds Role: the token only
// proves what was true when it was issued.
func (s *Service) Verify(token string) (Claims, error) {
	if len(s.secret) == 0 {
		return Claims{}, ErrInvalidToken
	}
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clk.Now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, ok := domain.ParseRole(tc.Role)
	if !ok || string(role) != tc.Role {
		return Claims{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, tc.Role)
	}
	if tc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	out := Claims{
		Subject: domain.UserID(tc.Subject),
		Email:   tc.Email,
		Role:    role,
		Issuer:  tc.Issuer,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.UTC()
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.UTC()
	}
	return out, nil
}

// TTL reports how long issued credentials stay valid.
func (s *Service) TTL() time.Duration { return s.ttl }
