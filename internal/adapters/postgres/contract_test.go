package postgres_test

import (
	"testing"

	"github.com/omnibus-tickets/omnibus-api/internal/adapters/contracttest"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/companyrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/documentrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/idempotency"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/testutil"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/ticketrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/triprepo"
	"github.com/omnibus-tickets/omnibus-api/internal/adapters/postgres/userrepo"
	idempotencyport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
)

func TestContract_PostgresRepos(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunRepos(t, func(t *testing.T) (contracttest.Repos, func()) {
		t.Helper()
		return contracttest.Repos{
			Users:     userrepo.NewRepo(pool),
			Companies: companyrepo.NewRepo(pool),
			Trips:     triprepo.NewRepo(pool),
			Tickets:   ticketrepo.NewRepo(pool),
			Documents: documentrepo.NewRepo(pool),
		}, nil
	})
}

func TestContract_PostgresIdempotencyStore(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunIdempotencyStore(t, func(t *testing.T) (idempotencyport.Store, func()) {
		t.Helper()
		return idempotency.NewStore(pool), nil
	})
}
