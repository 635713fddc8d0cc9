package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	auditlogport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/auditlog"
	companyrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/companyrepo"
	documentrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/documentrepo"
	idempotencyport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
	ticketrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/ticketrepo"
	triprepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
	userrepoport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/userrepo"
)

type CleanupFunc = func()

// Repos groups the relational repositories. Adapters with foreign keys need their
// parents to exist, so the contracts seed through the whole set.
type Repos struct {
	Users     userrepoport.Repository
	Companies companyrepoport.Repository
	Trips     triprepoport.Repository
	Tickets   ticketrepoport.Repository
	Documents documentrepoport.Repository
}

type ReposFactory func(t *testing.T) (Repos, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)
type AuditStoreFactory func(t *testing.T) (auditlogport.Store, CleanupFunc)

// RunRepos runs every relational repository contract against fresh repositories.
func RunRepos(t *testing.T, newRepos ReposFactory) {
	t.Helper()
	run := func(name string, fn func(t *testing.T, r Repos)) {
		t.Run(name, func(t *testing.T) {
			r, cleanup := newRepos(t)
			if cleanup != nil {
				t.Cleanup(cleanup)
			}
			fn(t, r)
		})
	}
	run("users", runUserRepo)
	run("companies", runCompanyRepo)
	run("trips", runTripRepo)
	run("tickets", runTicketRepo)
	run("documents", runDocumentRepo)
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, repo userrepoport.Repository, name string) userrepoport.User {
	t.Helper()
	id := uuid.NewString()
	u := userrepoport.User{
		ID:           domain.UserID(id),
		Name:         name,
		Email:        id + "@example.com",
		PasswordHash: "$2a$10$hash",
		CPF:          uniqueDigits(11),
		Roles:        []domain.Role{domain.RolePassenger},
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedCompany(t *testing.T, repo companyrepoport.Repository, owner domain.UserID, name string) companyrepoport.Company {
	t.Helper()
	c := companyrepoport.Company{
		ID:        domain.CompanyID(uuid.NewString()),
		OwnerID:   owner,
		CNPJ:      uniqueDigits(14),
		TradeName: name,
		LegalName: name + " LTDA",
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("seed company: %v", err)
	}
	return c
}

func seedTrip(t *testing.T, repo triprepoport.Repository, company domain.CompanyID, departure time.Time, seats int) triprepoport.Trip {
	t.Helper()
	tr := triprepoport.Trip{
		ID:              domain.TripID(uuid.NewString()),
		CompanyID:       company,
		Origin:          "São Paulo",
		Destination:     "Rio de Janeiro",
		DepartureAt:     departure,
		PriceCents:      12990,
		SeatsTotal:      seats,
		SeatsAvailable:  seats,
		AssignedSeating: true,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
	if err := repo.Create(context.Background(), tr); err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	return tr
}

// uniqueDigits returns n digits derived from a random UUID. The contracts do not validate
// check digits, they only need values that do not collide across runs.
func uniqueDigits(n int) string {
	u := uuid.New()
	out := make([]byte, 0, n)
	for _, b := range u {
		out = append(out, '0'+b%10)
		if len(out) == n {
			break
		}
	}
	for len(out) < n {
		out = append(out, '0')
	}
	return string(out)
}

func runUserRepo(t *testing.T, r Repos) {
	ctx := context.Background()
	repo := r.Users

	a := seedUser(t, repo, "alice")
	got, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != a.Email || got.CPF != a.CPF || len(got.Roles) != 1 || got.Roles[0] != domain.RolePassenger {
		t.Fatalf("GetByID=%+v, want %+v", got, a)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("createdAt=%v want %v", got.CreatedAt, baseTime)
	}

	byEmail, err := repo.GetByEmail(ctx, a.Email)
	if err != nil || byEmail.ID != a.ID {
		t.Fatalf("GetByEmail: id=%q err=%v", byEmail.ID, err)
	}

	dupEmail := a
	dupEmail.ID = domain.UserID(uuid.NewString())
	dupEmail.CPF = uniqueDigits(11)
	if err := repo.Create(ctx, dupEmail); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Create duplicate email err=%v, want ErrEmailTaken", err)
	}
	dupCPF := a
	dupCPF.ID = domain.UserID(uuid.NewString())
	dupCPF.Email = string(dupCPF.ID) + "@example.com"
	if err := repo.Create(ctx, dupCPF); !errors.Is(err, userrepoport.ErrCPFTaken) {
		t.Fatalf("Create duplicate cpf err=%v, want ErrCPFTaken", err)
	}

	b := seedUser(t, repo, "Bob")
	a.Name = "Alice Smith"
	a.Roles = []domain.Role{domain.RolePassenger, domain.RoleCompany}
	a.UpdatedAt = baseTime.Add(time.Hour)
	if err := repo.Update(ctx, a); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = repo.GetByID(ctx, a.ID)
	if got.Name != "Alice Smith" || len(got.Roles) != 2 {
		t.Fatalf("after Update=%+v", got)
	}

	stolen := b
	stolen.Email = a.Email
	if err := repo.Update(ctx, stolen); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Update to taken email err=%v, want ErrEmailTaken", err)
	}

	us, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	idxA, idxB := -1, -1
	for i, u := range us {
		switch u.ID {
		case a.ID:
			idxA = i
		case b.ID:
			idxB = i
		}
	}
	if idxA < 0 || idxB < 0 || idxA > idxB {
		t.Fatalf("List ordering: alice=%d bob=%d", idxA, idxB)
	}

	if err := repo.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, b.ID); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID after delete err=%v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, b.ID); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("second Delete err=%v, want ErrNotFound", err)
	}
	if err := repo.Update(ctx, b); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("Update deleted err=%v, want ErrNotFound", err)
	}
}

func runCompanyRepo(t *testing.T, r Repos) {
	ctx := context.Background()
	owner := seedUser(t, r.Users, "owner")
	other := seedUser(t, r.Users, "other")

	zeta := seedCompany(t, r.Companies, owner.ID, "Zeta Bus")
	alpha := seedCompany(t, r.Companies, owner.ID, "alpha Lines")
	_ = seedCompany(t, r.Companies, other.ID, "Other Co")

	got, err := r.Companies.GetByID(ctx, zeta.ID)
	if err != nil || got.CNPJ != zeta.CNPJ || got.OwnerID != owner.ID {
		t.Fatalf("GetByID=%+v err=%v", got, err)
	}

	dup := alpha
	dup.ID = domain.CompanyID(uuid.NewString())
	if err := r.Companies.Create(ctx, dup); !errors.Is(err, companyrepoport.ErrCNPJTaken) {
		t.Fatalf("Create duplicate cnpj err=%v, want ErrCNPJTaken", err)
	}

	cs, err := r.Companies.ListByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(cs) != 2 || cs[0].ID != alpha.ID || cs[1].ID != zeta.ID {
		t.Fatalf("ListByOwner=%+v", cs)
	}

	zeta.TradeName = "Zeta Express"
	if err := r.Companies.Update(ctx, zeta); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = r.Companies.GetByID(ctx, zeta.ID)
	if got.TradeName != "Zeta Express" {
		t.Fatalf("TradeName=%q", got.TradeName)
	}

	if err := r.Companies.Delete(ctx, zeta.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Companies.GetByID(ctx, zeta.ID); !errors.Is(err, companyrepoport.ErrNotFound) {
		t.Fatalf("GetByID after delete err=%v", err)
	}
}

func runTripRepo(t *testing.T, r Repos) {
	ctx := context.Background()
	owner := seedUser(t, r.Users, "owner")
	company := seedCompany(t, r.Companies, owner.ID, "Viação Teste")

	late := seedTrip(t, r.Trips, company.ID, baseTime.Add(48*time.Hour), 2)
	early := seedTrip(t, r.Trips, company.ID, baseTime.Add(24*time.Hour), 40)

	trips, err := r.Trips.Search(ctx, triprepoport.SearchFilter{CompanyID: company.ID})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(trips) != 2 || trips[0].ID != early.ID || trips[1].ID != late.ID {
		t.Fatalf("Search ordering=%+v", trips)
	}

	trips, err = r.Trips.Search(ctx, triprepoport.SearchFilter{
		CompanyID:     company.ID,
		Origin:        "são paulo",
		Destination:   "RIO DE JANEIRO",
		DepartureFrom: baseTime.Add(36 * time.Hour),
		DepartureTo:   baseTime.Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Search filtered: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != late.ID {
		t.Fatalf("Search filtered=%+v", trips)
	}

	trips, _ = r.Trips.Search(ctx, triprepoport.SearchFilter{CompanyID: company.ID, Destination: "Curitiba"})
	if len(trips) != 0 {
		t.Fatalf("expected no Curitiba trips, got %d", len(trips))
	}

	// Seat accounting.
	for i := 0; i < 2; i++ {
		if err := r.Trips.ReserveSeat(ctx, late.ID); err != nil {
			t.Fatalf("ReserveSeat %d: %v", i, err)
		}
	}
	if err := r.Trips.ReserveSeat(ctx, late.ID); !errors.Is(err, triprepoport.ErrSoldOut) {
		t.Fatalf("ReserveSeat on full trip err=%v, want ErrSoldOut", err)
	}
	if err := r.Trips.ReleaseSeat(ctx, late.ID); err != nil {
		t.Fatalf("ReleaseSeat: %v", err)
	}
	got, _ := r.Trips.GetByID(ctx, late.ID)
	if got.SeatsAvailable != 1 {
		t.Fatalf("SeatsAvailable=%d want 1", got.SeatsAvailable)
	}
	_ = r.Trips.ReleaseSeat(ctx, late.ID)
	_ = r.Trips.ReleaseSeat(ctx, late.ID)
	got, _ = r.Trips.GetByID(ctx, late.ID)
	if got.SeatsAvailable != got.SeatsTotal {
		t.Fatalf("ReleaseSeat must cap at total: %d/%d", got.SeatsAvailable, got.SeatsTotal)
	}
	if err := r.Trips.ReserveSeat(ctx, domain.TripID(uuid.NewString())); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("ReserveSeat unknown err=%v, want ErrNotFound", err)
	}

	if err := r.Trips.ReserveSeat(ctx, early.ID); err != nil {
		t.Fatalf("ReserveSeat early: %v", err)
	}
	early.PriceCents = 9990
	early.SeatsTotal = 10
	early.SeatsAvailable = 10 // ignored: one seat is sold
	early.UpdatedAt = baseTime.Add(time.Minute)
	if err := r.Trips.Update(ctx, early); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = r.Trips.GetByID(ctx, early.ID)
	if got.PriceCents != 9990 || !got.DepartureAt.Equal(early.DepartureAt) || got.SeatsTotal != 10 || got.SeatsAvailable != 9 {
		t.Fatalf("after Update=%+v", got)
	}
	early.SeatsTotal = 0
	if err := r.Trips.Update(ctx, early); !errors.Is(err, triprepoport.ErrSeatsBelowSold) {
		t.Fatalf("Update below sold err=%v, want ErrSeatsBelowSold", err)
	}

	if err := r.Trips.Delete(ctx, early.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := r.Trips.GetByID(ctx, early.ID); !errors.Is(err, triprepoport.ErrNotFound) {
		t.Fatalf("GetByID after delete err=%v", err)
	}
}

func runTicketRepo(t *testing.T, r Repos) {
	ctx := context.Background()
	owner := seedUser(t, r.Users, "owner")
	passenger := seedUser(t, r.Users, "passenger")
	company := seedCompany(t, r.Companies, owner.ID, "Viação Teste")
	trip := seedTrip(t, r.Trips, company.ID, baseTime.Add(24*time.Hour), 10)

	seat := 7
	first := ticketrepoport.Ticket{
		ID:              domain.TicketID(uuid.NewString()),
		TripID:          trip.ID,
		PassengerID:     passenger.ID,
		Status:          domain.TicketStatusPending,
		Seat:            &seat,
		AmountPaidCents: trip.PriceCents,
		PurchasedAt:     baseTime,
		UpdatedAt:       baseTime,
	}
	if err := r.Tickets.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sameSeat := first
	sameSeat.ID = domain.TicketID(uuid.NewString())
	sameSeat.PurchasedAt = baseTime.Add(time.Minute)
	if err := r.Tickets.Create(ctx, sameSeat); !errors.Is(err, ticketrepoport.ErrSeatTaken) {
		t.Fatalf("Create same seat err=%v, want ErrSeatTaken", err)
	}

	if taken, err := r.Tickets.SeatTaken(ctx, trip.ID, 7); err != nil || !taken {
		t.Fatalf("SeatTaken(7)=%v err=%v, want true", taken, err)
	}
	if taken, err := r.Tickets.SeatTaken(ctx, trip.ID, 8); err != nil || taken {
		t.Fatalf("SeatTaken(8)=%v err=%v, want false", taken, err)
	}

	noSeat := sameSeat
	noSeat.Seat = nil
	if err := r.Tickets.Create(ctx, noSeat); err != nil {
		t.Fatalf("Create without seat: %v", err)
	}

	got, err := r.Tickets.GetByID(ctx, first.ID)
	if err != nil || got.Seat == nil || *got.Seat != 7 || got.Status != domain.TicketStatusPending {
		t.Fatalf("GetByID=%+v err=%v", got, err)
	}

	first.Status = domain.TicketStatusPaid
	first.UpdatedAt = baseTime.Add(time.Hour)
	if err := r.Tickets.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// Canceling frees the seat for a new purchase.
	if err := r.Tickets.Transition(ctx, first.ID, domain.TicketStatusPending, domain.TicketStatusCanceled, baseTime.Add(2*time.Hour)); !errors.Is(err, ticketrepoport.ErrStatusChanged) {
		t.Fatalf("Transition from stale status err=%v, want ErrStatusChanged", err)
	}
	if err := r.Tickets.Transition(ctx, first.ID, domain.TicketStatusPaid, domain.TicketStatusCanceled, baseTime.Add(2*time.Hour)); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if got, _ := r.Tickets.GetByID(ctx, first.ID); got.Status != domain.TicketStatusCanceled || !got.UpdatedAt.Equal(baseTime.Add(2*time.Hour)) {
		t.Fatalf("after Transition=%+v", got)
	}
	if err := r.Tickets.Transition(ctx, domain.TicketID(uuid.NewString()), domain.TicketStatusPaid, domain.TicketStatusCanceled, baseTime); !errors.Is(err, ticketrepoport.ErrNotFound) {
		t.Fatalf("Transition unknown err=%v, want ErrNotFound", err)
	}
	if taken, _ := r.Tickets.SeatTaken(ctx, trip.ID, 7); taken {
		t.Fatalf("SeatTaken(7) after cancel, want false")
	}
	sameSeat.ID = domain.TicketID(uuid.NewString())
	sameSeat.PurchasedAt = baseTime.Add(2 * time.Minute)
	if err := r.Tickets.Create(ctx, sameSeat); err != nil {
		t.Fatalf("Create after cancel: %v", err)
	}

	mine, err := r.Tickets.ListByPassenger(ctx, passenger.ID)
	if err != nil {
		t.Fatalf("ListByPassenger: %v", err)
	}
	if len(mine) != 3 || mine[0].ID != first.ID || mine[2].ID != sameSeat.ID {
		t.Fatalf("ListByPassenger ordering=%+v", mine)
	}
	byTrip, err := r.Tickets.ListByTrip(ctx, trip.ID)
	if err != nil || len(byTrip) != 3 {
		t.Fatalf("ListByTrip len=%d err=%v", len(byTrip), err)
	}

	if _, err := r.Tickets.GetByID(ctx, domain.TicketID(uuid.NewString())); !errors.Is(err, ticketrepoport.ErrNotFound) {
		t.Fatalf("GetByID unknown err=%v, want ErrNotFound", err)
	}
}

func runDocumentRepo(t *testing.T, r Repos) {
	ctx := context.Background()
	u := seedUser(t, r.Users, "doc owner")

	if _, err := r.Documents.GetByUser(ctx, u.ID); !errors.Is(err, documentrepoport.ErrNotFound) {
		t.Fatalf("GetByUser before upload err=%v, want ErrNotFound", err)
	}

	d := documentrepoport.Document{
		ID:          domain.DocumentID(uuid.NewString()),
		UserID:      u.ID,
		Type:        domain.DocumentTypeRG,
		ObjectKey:   "users/" + string(u.ID) + "/rg/a.pdf",
		ContentType: "application/pdf",
		SizeBytes:   42,
		UploadedAt:  baseTime,
	}
	if err := r.Documents.Upsert(ctx, d); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	d2 := d
	d2.ID = domain.DocumentID(uuid.NewString())
	d2.Type = domain.DocumentTypeCNH
	d2.ObjectKey = "users/" + string(u.ID) + "/cnh/b.png"
	d2.ContentType = "image/png"
	d2.UploadedAt = baseTime.Add(time.Hour)
	if err := r.Documents.Upsert(ctx, d2); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}

	got, err := r.Documents.GetByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByUser: %v", err)
	}
	if got.ID != d2.ID || got.Type != domain.DocumentTypeCNH || got.ObjectKey != d2.ObjectKey || !got.UploadedAt.Equal(d2.UploadedAt) {
		t.Fatalf("GetByUser=%+v, want %+v", got, d2)
	}
}

func RunAuditLogStore(t *testing.T, newStore AuditStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	marker := uuid.NewString()
	for i, action := range []domain.AuditAction{domain.AuditActionCreate, domain.AuditActionUpdate, domain.AuditActionDelete} {
		if err := store.Append(ctx, domain.AuditEntry{
			ID:         domain.AuditEntryID(uuid.NewString()),
			EntityName: "User",
			EntityID:   marker,
			Action:     action,
			Username:   "ana@example.com",
			Details:    "step",
			CreatedAt:  time.Now().UTC().Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Append %s: %v", action, err)
		}
	}

	got, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("List len=%d want 2", len(got))
	}
	if got[0].EntityID != marker || got[0].Action != domain.AuditActionDelete || got[1].Action != domain.AuditActionUpdate {
		t.Fatalf("List must be newest first: %+v", got)
	}
}

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	scope := idempotencyport.Scope{
		Key:     idempotencyport.Key(uuid.NewString()),
		Subject: domain.UserID(uuid.NewString()),
		Route:   "POST /trips/" + uuid.NewString() + "/tickets",
	}

	if _, found, err := store.Claim(ctx, scope, "hash-abc", baseTime); err != nil || found {
		t.Fatalf("first Claim found=%v err=%v", found, err)
	}

	// A second claim sees the pending binding, whatever hash it brings.
	got, found, err := store.Claim(ctx, scope, "hash-def", baseTime.Add(time.Minute))
	if err != nil || !found {
		t.Fatalf("second Claim found=%v err=%v", found, err)
	}
	if got.RequestHash != "hash-abc" || got.Completed() {
		t.Fatalf("unexpected pending entry: %+v", got)
	}

	// Only the bound hash can release a pending claim.
	if err := store.Release(ctx, scope, "hash-def"); err != nil {
		t.Fatalf("Release other hash: %v", err)
	}
	if got, found, err := store.Claim(ctx, scope, "hash-def", baseTime.Add(time.Minute)); err != nil || !found || got.RequestHash != "hash-abc" {
		t.Fatalf("binding lost after foreign Release found=%v err=%v entry=%+v", found, err, got)
	}
	if err := store.Release(ctx, scope, "hash-abc"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, found, err := store.Claim(ctx, scope, "hash-abc", baseTime); err != nil || found {
		t.Fatalf("Claim after Release found=%v err=%v", found, err)
	}

	// Completing under another hash must not overwrite the binding.
	if err := store.Complete(ctx, scope, "hash-def", 201, "application/json", []byte(`{"x":1}`)); err != nil {
		t.Fatalf("Complete other hash: %v", err)
	}
	if err := store.Complete(ctx, scope, "hash-abc", 201, "application/json", []byte(`{"ticket":{}}`)); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// A completed entry survives Release.
	if err := store.Release(ctx, scope, "hash-abc"); err != nil {
		t.Fatalf("Release completed: %v", err)
	}
	got, found, err = store.Claim(ctx, scope, "hash-abc", baseTime.Add(time.Minute))
	if err != nil || !found {
		t.Fatalf("Claim after Complete found=%v err=%v", found, err)
	}
	if !got.Completed() || got.StatusCode != 201 || got.ContentType != "application/json" || string(got.Body) != `{"ticket":{}}` {
		t.Fatalf("unexpected completed entry: %+v", got)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Fatalf("CreatedAt=%v want %v", got.CreatedAt, baseTime)
	}

	// Another subject using the same key is unrelated.
	other := scope
	other.Subject = domain.UserID(uuid.NewString())
	if _, found, err := store.Claim(ctx, other, "hash-zzz", baseTime); err != nil || found {
		t.Fatalf("Claim other subject found=%v err=%v", found, err)
	}

	// Past retention the key can be bound again.
	later := baseTime.Add(idempotencyport.Retention + time.Second)
	if _, found, err := store.Claim(ctx, scope, "hash-new", later); err != nil || found {
		t.Fatalf("Claim after retention found=%v err=%v", found, err)
	}
	got, found, err = store.Claim(ctx, scope, "hash-new", later)
	if err != nil || !found || got.RequestHash != "hash-new" || got.Completed() {
		t.Fatalf("rebound entry found=%v err=%v entry=%+v", found, err, got)
	}

	// Prune removes old entries only.
	n, err := store.Prune(ctx, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n < 1 {
		t.Fatalf("Prune removed %d entries, want at least 1", n)
	}
	if _, found, err := store.Claim(ctx, other, "hash-zzz", later.Add(-idempotencyport.Retention)); err != nil || found {
		t.Fatalf("pruned entry still present found=%v err=%v", found, err)
	}
	if _, found, err := store.Claim(ctx, scope, "hash-new", later); err != nil || !found {
		t.Fatalf("fresh entry pruned found=%v err=%v", found, err)
	}
}
