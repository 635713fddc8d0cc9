package itest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	gormauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/gorm/auditlog"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/httpapi"
	memauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/auditlog"
	memclock "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/clock"
	memcompanyrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/companyrepo"
	memdocumentrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/documentrepo"
	memidempotency "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/idempotency"
	memobjectstore "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/objectstore"
	memticketrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/ticketrepo"
	memtriprepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/triprepo"
	memuserrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/userrepo"
	pgcompanyrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/companyrepo"
	pgdocumentrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/documentrepo"
	pgidempotency "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/idempotency"
	postgres_testutil "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/testutil"
	pgticketrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/ticketrepo"
	pgtriprepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/triprepo"
	pguserrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/userrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/app/auth"
	"github.com/omnibus-tickets/omnibus-api/internal/app/companies"
	"github.com/omnibus-tickets/omnibus-api/internal/app/documents"
	"github.com/omnibus-tickets/omnibus-api/internal/app/tickets"
	"github.com/omnibus-tickets/omnibus-api/internal/app/trips"
	"github.com/omnibus-tickets/omnibus-api/internal/app/users"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/password"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/auth/tokens"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
	auditlogport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/auditlog"
	companyrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	documentrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/documentrepo"
	idempotencyport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
	ticketrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	triprepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
	userrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	clock   *memclock.ManualClock
}

// newTestServer wires the full stack behind real HTTP. The server clock is pinned
// to the wall clock at start so rows written by earlier Postgres runs stay in the past.
func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	clk := memclock.NewManualClock(time.Now().UTC().Truncate(time.Second))

	var (
		userRepo    userrepoport.Repository
		companyRepo companyrepoport.Repository
		tripRepo    triprepoport.Repository
		ticketRepo  ticketrepoport.Repository
		docRepo     documentrepoport.Repository
		auditStore  auditlogport.Store
		idemStore   idempotencyport.Store
	)

	switch b {
	case backendPostgres:
		pool := postgres_testutil.OpenMigratedPool(t)
		userRepo = pguserrepo.NewRepo(pool)
		companyRepo = pgcompanyrepo.NewRepo(pool)
		tripRepo = pgtriprepo.NewRepo(pool)
		ticketRepo = pgticketrepo.NewRepo(pool)
		docRepo = pgdocumentrepo.NewRepo(pool)
		idemStore = pgidempotency.NewStore(pool)
		sqlDB := stdlib.OpenDBFromPool(pool)
		t.Cleanup(func() { _ = sqlDB.Close() })
		store, err := gormauditlog.NewStore(sqlDB, false, zap.NewNop())
		if err != nil {
			t.Fatalf("audit store: %v", err)
		}
		auditStore = store
	case backendMemory:
		userRepo = memuserrepo.NewRepo()
		companyRepo = memcompanyrepo.NewRepo()
		tripRepo = memtriprepo.NewRepo()
		ticketRepo = memticketrepo.NewRepo()
		docRepo = memdocumentrepo.NewRepo()
		auditStore = memauditlog.NewStore()
		idemStore = memidempotency.NewStore()
	default:
		t.Fatalf("unknown backend: %s", b)
	}

	tok := tokens.NewService(config.TokenConfig{Secret: []byte("itest-secret"), Issuer: "itest-issuer"}, clk)
	hasher := password.NewHasher(bcrypt.MinCost)
	auditLog := audit.NewLogger(audit.StoreRecorder{Store: auditStore}, clk, nil)

	api := &httpapi.Server{
		Auth:      auth.NewService(userRepo, companyRepo, tok, hasher, clk, auditLog),
		Users:     users.NewService(userRepo, companyRepo, ticketRepo, hasher, clk, auditLog),
		Companies: companies.NewService(companyRepo, userRepo, tripRepo, clk, auditLog),
		Trips:     trips.NewService(tripRepo, companyRepo, ticketRepo, clk, auditLog),
		Tickets:   tickets.NewService(ticketRepo, tripRepo, nil, clk, auditLog, nil),
		Documents: documents.NewService(docRepo, userRepo, memobjectstore.NewStore("itest"), 15*time.Minute, clk, auditLog, nil),
		Audit:     audit.NewService(auditStore),
		Idem:      idemStore,
		Clock:     clk,
	}

	// Integration tests use the dev auth middleware to stay fully local and deterministic.
	handler := httpapi.NewRouter(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewDevAuthMiddleware()})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		clock:   clk,
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

// actor is who a request is sent as through the dev auth shim.
type actor struct {
	subject string
	role    string
}

func (s *testServer) doJSON(t *testing.T, method string, path string, as actor, body any) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if as.subject != "" {
		req.Header.Set("X-Debug-Subject", as.subject)
	}
	if as.role != "" {
		req.Header.Set("X-Debug-Role", as.role)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	if status != wantStatus {
		t.Fatalf("status=%d want=%d body=%s", status, wantStatus, string(body))
	}
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}

// randomCPF returns a CPF with valid check digits so Postgres runs never collide.
func randomCPF() string {
	d := make([]int, 11)
	for i := 0; i < 9; i++ {
		d[i] = rand.Intn(10)
	}
	d[0] = 1 + rand.Intn(9)
	d[1] = (d[0] + 1 + rand.Intn(9)) % 10
	d[9] = mod11(d[:9], 10)
	d[10] = mod11(d[:10], 11)
	return digitsString(d)
}

// randomCNPJ returns a CNPJ with valid check digits.
func randomCNPJ() string {
	d := make([]int, 14)
	for i := 0; i < 8; i++ {
		d[i] = rand.Intn(10)
	}
	d[0] = 1 + rand.Intn(9)
	d[11] = 1
	d[12] = weighted(d[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	d[13] = weighted(d[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return digitsString(d)
}

func mod11(d []int, firstWeight int) int {
	sum := 0
	for i, v := range d {
		sum += v * (firstWeight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		return 0
	}
	return r
}

func weighted(d []int, weights []int) int {
	sum := 0
	for i, v := range d {
		sum += v * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func digitsString(d []int) string {
	var b strings.Builder
	for _, v := range d {
		fmt.Fprintf(&b, "%d", v)
	}
	return b.String()
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s+%d@example.com", prefix, rand.Int63())
}
