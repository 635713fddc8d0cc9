package tokens_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memclock "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/clock"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, secret string) (*tokens.Service, *memclock.ManualClock) {
	t.Helper()
	clk := memclock.NewManualClock(t0)
	return tokens.NewService(config.TokenConfig{Secret: []byte(secret), Issuer: "omnibus-api", TTL: 4 * time.Hour}, clk), clk
}

func allRolesIdentity() tokens.Identity {
	return tokens.Identity{
		ID:    "user-123",
		Email: "ana@example.com",
		Roles: domain.Roles{domain.RolePassenger, domain.RoleCompany, domain.RoleAdmin},
	}
}

func TestService_RoundTripEveryRole(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, "test-secret")
	id := allRolesIdentity()

	for _, role := range domain.AllRoles() {
		t.Run(string(role), func(t *testing.T) {
			cred, err := svc.Issue(id, role)
			require.NoError(t, err)
			assert.Equal(t, role, cred.Role)
			assert.Equal(t, t0.Add(4*time.Hour), cred.ExpiresAt)

			sub, err := svc.Validate(cred.Token)
			require.NoError(t, err)
			assert.Equal(t, id.ID, sub)

			claims, err := svc.Verify(cred.Token)
			require.NoError(t, err)
			assert.Equal(t, role, claims.Role)
			assert.Equal(t, "ana@example.com", claims.Email)
			assert.Equal(t, "omnibus-api", claims.Issuer)
			assert.Equal(t, t0, claims.IssuedAt)
			assert.Equal(t, cred.ExpiresAt, claims.ExpiresAt)
		})
	}
}

func TestService_Issue_RoleNotHeld(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, "test-secret")
	id := tokens.Identity{ID: "user-1", Roles: domain.Roles{domain.RolePassenger}}

	for _, role := range []domain.Role{domain.RoleCompany, domain.RoleAdmin, domain.Role("DRIVER"), domain.Role("passenger")} {
		_, err := svc.Issue(id, role)
		assert.ErrorIs(t, err, tokens.ErrRoleNotHeld, "role %q", role)
	}
}

func TestService_Issue_RoleCheckedBeforeSecret(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, "")
	id := tokens.Identity{ID: "user-1", Roles: domain.Roles{domain.RolePassenger}}

	_, err := svc.Issue(id, domain.RoleAdmin)
	assert.ErrorIs(t, err, tokens.ErrRoleNotHeld)

	_, err = svc.Issue(id, domain.RolePassenger)
	assert.ErrorIs(t, err, tokens.ErrSecretMissing)
}

func TestService_Validate_Expired(t *testing.T) {
	t.Parallel()
	svc, clk := newService(t, "test-secret")

	cred, err := svc.Issue(allRolesIdentity(), domain.RolePassenger)
	require.NoError(t, err)

	clk.Advance(4*time.Hour - time.Second)
	_, err = svc.Validate(cred.Token)
	require.NoError(t, err, "token must still be valid just before expiry")

	clk.Advance(2 * time.Second)
	_, err = svc.Validate(cred.Token)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}

func TestService_Validate_WrongSecret(t *testing.T) {
	t.Parallel()
	issuer, _ := newService(t, "secret-a")
	other, _ := newService(t, "secret-b")

	cred, err := issuer.Issue(allRolesIdentity(), domain.RoleAdmin)
	require.NoError(t, err)

	_, err = other.Validate(cred.Token)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}

func TestService_Validate_WrongIssuer(t *testing.T) {
	t.Parallel()
	clk := memclock.NewManualClock(t0)
	a := tokens.NewService(config.TokenConfig{Secret: []byte("s"), Issuer: "someone-else"}, clk)
	b := tokens.NewService(config.TokenConfig{Secret: []byte("s"), Issuer: "omnibus-api"}, clk)

	cred, err := a.Issue(allRolesIdentity(), domain.RolePassenger)
	require.NoError(t, err)
	_, err = b.Validate(cred.Token)
	assert.ErrorIs(t, err, tokens.ErrInvalidToken)
}

// flipChar replaces a base64url character with another valid one that differs in its
// most significant data bit, so the decoded bytes always change.
func flipChar(c byte) byte {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	i := strings.IndexByte(alphabet, c)
	return alphabet[i^32]
}

func TestService_Validate_TamperedAnyByte(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, "test-secret")

	cred, err := svc.Issue(allRolesIdentity(), domain.RoleCompany)
	require.NoError(t, err)

	for i := 0; i < len(cred.Token); i++ {
		if cred.Token[i] == '.' {
			continue
		}
		b := []byte(cred.Token)
		b[i] = flipChar(b[i])
		_, err := svc.Validate(string(b))
		if !errors.Is(err, tokens.ErrInvalidToken) {
			t.Fatalf("tampered byte %d accepted (err=%v)", i, err)
		}
	}
}

func TestService_Validate_RejectsOtherAlgorithmsAndGarbage(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, "test-secret")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss":  "omnibus-api",
		"sub":  "user-123",
		"role": "ADMIN",
		"exp":  t0.Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"iss":  "omnibus-api",
		"sub":  "user-123",
		"role": "ADMIN",
		"exp":  t0.Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"none":    none,
		"hs512":   hs512,
		"empty":   "",
		"garbage": "not.a.jwt",
	} {
		_, err := svc.Validate(tok)
		assert.ErrorIs(t, err, tokens.ErrInvalidToken, name)
	}
}

func TestService_Validate_RequiresKnownRoleAndExpiry(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t, "test-secret")

	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return s
	}

	cases := map[string]jwt.MapClaims{
		"unknown role": {"iss": "omnibus-api", "sub": "u", "role": "DRIVER", "exp": t0.Add(time.Hour).Unix()},
		"no role":      {"iss": "omnibus-api", "sub": "u", "exp": t0.Add(time.Hour).Unix()},
		"no exp":       {"iss": "omnibus-api", "sub": "u", "role": "ADMIN"},
		"no subject":   {"iss": "omnibus-api", "role": "ADMIN", "exp": t0.Add(time.Hour).Unix()},
	}
	for name, claims := range cases {
		_, err := svc.Validate(sign(claims))
		assert.ErrorIs(t, err, tokens.ErrInvalidToken, name)
	}
}

func TestService_ExpiryIsIndependentOfClockZone(t *testing.T) {
	t.Parallel()
	saoPaulo := time.FixedZone("UTC-3", -3*60*60)
	clk := memclock.NewManualClock(t0.In(saoPaulo))
	svc := tokens.NewService(config.TokenConfig{Secret: []byte("s")}, clk)

	cred, err := svc.Issue(allRolesIdentity(), domain.RolePassenger)
	require.NoError(t, err)
	assert.True(t, cred.ExpiresAt.Equal(t0.Add(config.DefaultTokenTTL)), "expiresAt=%v", cred.ExpiresAt)
	assert.Equal(t, time.UTC, cred.ExpiresAt.Location())
}
