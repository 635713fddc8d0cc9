package users

import (
	"context"
	"errors"
	"testing"
	"time"

	memauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/auditlog"
	memclock "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/clock"
	memcompanyrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/companyrepo"
	memticketrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/ticketrepo"
	memuserrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/userrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/app/audit"
	"github.com/omnibus-tickets/omnibus-api/internal/app/optional"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "hashed:" + p, nil }

type fixture struct {
	svc       *Service
	users     *memuserrepo.Repo
	companies *memcompanyrepo.Repo
	tickets   *memticketrepo.Repo
	audit     *memauditlog.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
	users := memuserrepo.NewRepo()
	companies := memcompanyrepo.NewRepo()
	tickets := memticketrepo.NewRepo()
	store := memauditlog.NewStore()
	svc := NewService(users, companies, tickets, plainHasher{}, clk, audit.NewLogger(audit.StoreRecorder{Store: store}, clk, nil))

	for _, u := range []userrepo.User{
		{ID: "ana", Name: "Ana", Email: "ana@example.com", CPF: "52998224725", Roles: []domain.Role{domain.RolePassenger}},
		{ID: "bia", Name: "Bia", Email: "bia@example.com", CPF: "12345678909", Roles: []domain.Role{domain.RolePassenger}},
	} {
		if err := users.Create(context.Background(), u); err != nil {
			t.Fatalf("seed err=%v", err)
		}
	}
	return fixture{svc: svc, users: users, companies: companies, tickets: tickets, audit: store}
}

var (
	ana   = domain.Principal{UserID: "ana", Email: "ana@example.com", Role: domain.RolePassenger}
	admin = domain.Principal{UserID: "root", Email: "root@example.com", Role: domain.RoleAdmin}
)

func wantStatus(t *testing.T, err error, status int) {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Status != status {
		t.Fatalf("err=%v, want status %d", err, status)
	}
}

func TestService_Get_SelfOrAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, ana, "ana"); err != nil {
		t.Fatalf("self Get err=%v", err)
	}
	_, err := f.svc.Get(ctx, ana, "bia")
	wantStatus(t, err, 404)

	got, err := f.svc.Get(ctx, admin, "bia")
	if err != nil || got.Email != "bia@example.com" {
		t.Fatalf("admin Get=%+v err=%v", got, err)
	}
	if got.PasswordHash != "" {
		t.Fatalf("password hash leaked out of the users service")
	}
	entries, _ := f.audit.List(ctx, 0)
	if len(entries) != 2 || entries[0].Action != domain.AuditActionRead {
		t.Fatalf("audit=%+v", entries)
	}
}

func TestService_List_AdminOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), ana)
	wantStatus(t, err, 403)

	us, err := f.svc.List(context.Background(), admin)
	if err != nil || len(us) != 2 || us[0].Name != "Ana" {
		t.Fatalf("List=%+v err=%v", us, err)
	}
}

func TestService_Update_PatchSemantics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Update(ctx, ana, "ana", UpdateInput{
		Name:     optional.Some("  Ana   Maria "),
		Password: optional.Some("new-password"),
	})
	if err != nil {
		t.Fatalf("Update err=%v", err)
	}
	if got.Name != "Ana Maria" || got.Email != "ana@example.com" {
		t.Fatalf("Update=%+v", got)
	}
	stored, _ := f.users.GetByID(ctx, "ana")
	if stored.PasswordHash != "hashed:new-password" || !stored.UpdatedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("stored=%+v", stored)
	}

	_, err = f.svc.Update(ctx, ana, "ana", UpdateInput{Email: optional.Some("bia@example.com")})
	wantStatus(t, err, 409)

	_, err = f.svc.Update(ctx, ana, "ana", UpdateInput{Name: optional.Null[string](), Password: optional.Some("short")})
	wantStatus(t, err, 400)

	_, err = f.svc.Update(ctx, ana, "bia", UpdateInput{Name: optional.Some("Hacked")})
	wantStatus(t, err, 404)
}

func TestService_Delete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	if err := f.companies.Create(ctx, companyrepo.Company{ID: "c-1", OwnerID: "bia", CNPJ: "11222333000181"}); err != nil {
		t.Fatalf("seed company err=%v", err)
	}
	err := f.svc.Delete(ctx, admin, "bia")
	wantStatus(t, err, 422)

	if err := f.svc.Delete(ctx, ana, "ana"); err != nil {
		t.Fatalf("Delete self err=%v", err)
	}
	_, err = f.svc.GetMe(ctx, ana)
	wantStatus(t, err, 404)
}

func TestService_Delete_RefusedWhileTicketsExist(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	at := time.Unix(100, 0).UTC()

	if err := f.tickets.Create(ctx, ticketrepo.Ticket{
		ID: "tk-1", TripID: "trip-1", PassengerID: "ana", Status: domain.TicketStatusPending,
		AmountPaidCents: 1000, PurchasedAt: at, UpdatedAt: at,
	}); err != nil {
		t.Fatalf("seed ticket err=%v", err)
	}

	err := f.svc.Delete(ctx, admin, "ana")
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Status != 422 || ae.Code != "USER_HAS_TICKETS" {
		t.Fatalf("Delete err=%v, want 422 USER_HAS_TICKETS", err)
	}
	if _, err := f.users.GetByID(ctx, "ana"); err != nil {
		t.Fatalf("user removed despite refusal: %v", err)
	}

	// A canceled ticket is still history and still blocks deletion.
	if err := f.tickets.Transition(ctx, "tk-1", domain.TicketStatusPending, domain.TicketStatusCanceled, at); err != nil {
		t.Fatalf("cancel ticket err=%v", err)
	}
	wantStatus(t, f.svc.Delete(ctx, ana, "ana"), 422)

	// Users without tickets go.
	if err := f.svc.Delete(ctx, admin, "bia"); err != nil {
		t.Fatalf("Delete bia err=%v", err)
	}
}

type refusingUsers struct {
	*memuserrepo.Repo
	err error
}

func (r refusingUsers) Delete(context.Context, domain.UserID) error { return r.err }

func TestService_Delete_MapsStorageRefusals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cases := []struct {
		err  error
		code string
	}{
		{userrepo.ErrHasTickets, "USER_HAS_TICKETS"},
		{userrepo.ErrOwnsCompanies, "USER_OWNS_COMPANIES"},
		{userrepo.ErrNotFound, "USER_NOT_FOUND"},
	}
	for _, tc := range cases {
		f := newFixture(t)
		clk := memclock.NewManualClock(time.Unix(100, 0).UTC())
		svc := NewService(refusingUsers{Repo: f.users, err: tc.err}, f.companies, f.tickets, plainHasher{}, clk, nil)

		err := svc.Delete(ctx, admin, "ana")
		var ae *apperr.Error
		if !errors.As(err, &ae) || ae.Code != tc.code {
			t.Fatalf("storage err %v: got %v want %s", tc.err, err, tc.code)
		}
	}
}
