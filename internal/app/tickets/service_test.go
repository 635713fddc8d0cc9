package tickets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	memclock "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/clock"
	memticketrepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/ticketrepo"
	memtriprepo "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/triprepo"
	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/platform/events"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	typ    events.TicketEventType
	ticket domain.Ticket
}

type recorder struct {
	mu  sync.Mutex
	evs []recordedEvent
}

func (r *recorder) TicketChanged(_ context.Context, typ events.TicketEventType, t domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, recordedEvent{typ: typ, ticket: t})
	return nil
}

func (r *recorder) types() []events.TicketEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.TicketEventType, 0, len(r.evs))
	for _, e := range r.evs {
		out = append(out, e.typ)
	}
	return out
}

type fixture struct {
	svc    *Service
	clk    *memclock.ManualClock
	trips  *memtriprepo.Repo
	events *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clk := memclock.NewManualClock(now)
	trips := memtriprepo.NewRepo()
	rec := &recorder{}
	svc := NewService(memticketrepo.NewRepo(), trips, rec, clk, nil, nil)
	var n atomic.Int64
	svc.SetNewTicketIDForTest(func() domain.TicketID {
		return domain.TicketID(fmt.Sprintf("k-%d", n.Add(1)))
	})

	ctx := context.Background()
	for _, tr := range []triprepo.Trip{
		{ID: "open", CompanyID: "c", DepartureAt: now.Add(24 * time.Hour), PriceCents: 8990, SeatsTotal: 2, SeatsAvailable: 2},
		{ID: "seated", CompanyID: "c", DepartureAt: now.Add(24 * time.Hour), PriceCents: 15000, SeatsTotal: 4, SeatsAvailable: 4, AssignedSeating: true},
	} {
		if err := trips.Create(ctx, tr); err != nil {
			t.Fatalf("seed trip err=%v", err)
		}
	}
	return fixture{svc: svc, clk: clk, trips: trips, events: rec}
}

var (
	ana   = domain.Principal{UserID: "ana", Role: domain.RolePassenger}
	bia   = domain.Principal{UserID: "bia", Role: domain.RolePassenger}
	admin = domain.Principal{UserID: "root", Role: domain.RoleAdmin}
)

func seat(n int) *int { return &n }

func wantCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Status != status || ae.Code != code {
		t.Fatalf("err=%v, want %d %s", err, status, code)
	}
}

func available(t *testing.T, f fixture, id domain.TripID) int {
	t.Helper()
	tr, err := f.trips.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID err=%v", err)
	}
	return tr.SeatsAvailable
}

func TestService_Purchase_OpenSeating(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tk, err := f.svc.Purchase(ctx, ana, "open", PurchaseInput{})
	if err != nil {
		t.Fatalf("Purchase err=%v", err)
	}
	if tk.Status != domain.TicketStatusPending || tk.AmountPaidCents != 8990 || tk.PassengerID != "ana" || tk.Seat != nil {
		t.Fatalf("Purchase=%+v", tk)
	}
	if _, err := f.svc.Purchase(ctx, bia, "open", PurchaseInput{}); err != nil {
		t.Fatalf("second Purchase err=%v", err)
	}
	_, err = f.svc.Purchase(ctx, bia, "open", PurchaseInput{})
	wantCode(t, err, 422, "TRIP_SOLD_OUT")

	_, err = f.svc.Purchase(ctx, bia, "open", PurchaseInput{Seat: seat(1)})
	wantCode(t, err, 400, "VALIDATION_ERROR")

	if got := f.events.types(); len(got) != 2 || got[0] != events.TicketPurchased {
		t.Fatalf("events=%v", got)
	}
}

func TestService_Purchase_AssignedSeating(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, ana, "seated", PurchaseInput{})
	wantCode(t, err, 400, "VALIDATION_ERROR")
	_, err = f.svc.Purchase(ctx, ana, "seated", PurchaseInput{Seat: seat(5)})
	wantCode(t, err, 400, "VALIDATION_ERROR")

	tk, err := f.svc.Purchase(ctx, ana, "seated", PurchaseInput{Seat: seat(3)})
	if err != nil || tk.Seat == nil || *tk.Seat != 3 {
		t.Fatalf("Purchase=%+v err=%v", tk, err)
	}
	_, err = f.svc.Purchase(ctx, bia, "seated", PurchaseInput{Seat: seat(3)})
	wantCode(t, err, 409, "SEAT_TAKEN")
	if got := available(t, f, "seated"); got != 3 {
		t.Fatalf("SeatsAvailable=%d, want 3", got)
	}
}

func TestService_Purchase_Rules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Purchase(ctx, admin, "open", PurchaseInput{})
	wantCode(t, err, 403, "FORBIDDEN")
	_, err = f.svc.Purchase(ctx, ana, "missing", PurchaseInput{})
	wantCode(t, err, 404, "TRIP_NOT_FOUND")

	f.clk.Set(now.Add(24 * time.Hour))
	_, err = f.svc.Purchase(ctx, ana, "open", PurchaseInput{})
	wantCode(t, err, 422, "TRIP_DEPARTED")
}

func TestService_Purchase_ConcurrentSameSeat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const buyers = 8
	var wg sync.WaitGroup
	var ok, taken atomic.Int64
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.Principal{UserID: domain.UserID(fmt.Sprintf("p-%d", i)), Role: domain.RolePassenger}
			_, err := f.svc.Purchase(ctx, p, "seated", PurchaseInput{Seat: seat(1)})
			var ae *apperr.Error
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &ae) && (ae.Code == "SEAT_TAKEN" || ae.Code == "TRIP_SOLD_OUT"):
				// Losers may also see the trip momentarily full while other losers hold a reservation.
				taken.Add(1)
			default:
				t.Errorf("Purchase err=%v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok.Load() != 1 || taken.Load() != buyers-1 {
		t.Fatalf("ok=%d taken=%d", ok.Load(), taken.Load())
	}
	if got := available(t, f, "seated"); got != 3 {
		t.Fatalf("SeatsAvailable=%d, want 3", got)
	}
}

func TestService_PayAndCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tk, err := f.svc.Purchase(ctx, ana, "open", PurchaseInput{})
	if err != nil {
		t.Fatalf("Purchase err=%v", err)
	}

	_, err = f.svc.Pay(ctx, bia, tk.ID)
	wantCode(t, err, 404, "TICKET_NOT_FOUND")

	paid, err := f.svc.Pay(ctx, ana, tk.ID)
	if err != nil || paid.Status != domain.TicketStatusPaid {
		t.Fatalf("Pay=%+v err=%v", paid, err)
	}
	_, err = f.svc.Pay(ctx, ana, tk.ID)
	wantCode(t, err, 422, "INVALID_TICKET_STATUS")

	if got := available(t, f, "open"); got != 1 {
		t.Fatalf("SeatsAvailable=%d, want 1", got)
	}
	canceled, err := f.svc.Cancel(ctx, admin, tk.ID)
	if err != nil || canceled.Status != domain.TicketStatusCanceled {
		t.Fatalf("Cancel=%+v err=%v", canceled, err)
	}
	if got := available(t, f, "open"); got != 2 {
		t.Fatalf("SeatsAvailable=%d after cancel, want 2", got)
	}
	_, err = f.svc.Cancel(ctx, ana, tk.ID)
	wantCode(t, err, 422, "INVALID_TICKET_STATUS")

	want := []events.TicketEventType{events.TicketPurchased, events.TicketPaid, events.TicketCanceled}
	got := f.events.types()
	if len(got) != len(want) {
		t.Fatalf("events=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events=%v, want %v", got, want)
		}
	}

	mine, err := f.svc.ListMine(ctx, ana)
	if err != nil || len(mine) != 1 || mine[0].Status != domain.TicketStatusCanceled {
		t.Fatalf("ListMine=%+v err=%v", mine, err)
	}
}

func TestService_Cancel_AfterDeparture(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	tk, err := f.svc.Purchase(ctx, ana, "open", PurchaseInput{})
	if err != nil {
		t.Fatalf("Purchase err=%v", err)
	}
	f.clk.Advance(25 * time.Hour)
	_, err = f.svc.Cancel(ctx, ana, tk.ID)
	wantCode(t, err, 422, "TRIP_DEPARTED")
}
