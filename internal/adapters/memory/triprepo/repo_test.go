package triprepo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/triprepo"
)

func TestRepo_ReserveSeat_ConcurrentNeverOversells(t *testing.T) {
	t.Parallel()

	r := NewRepo()
	ctx := context.Background()
	if err := r.Create(ctx, triprepo.Trip{
		ID:             "trip-1",
		CompanyID:      "c-1",
		Origin:         "A",
		Destination:    "B",
		DepartureAt:    time.Unix(10_000, 0).UTC(),
		SeatsTotal:     5,
		SeatsAvailable: 5,
	}); err != nil {
		t.Fatalf("Create err=%v", err)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.ReserveSeat(ctx, domain.TripID("trip-1"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, triprepo.ErrSoldOut):
				soldOut++
			default:
				t.Errorf("ReserveSeat err=%v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 5 || soldOut != 15 {
		t.Fatalf("ok=%d soldOut=%d, want 5/15", ok, soldOut)
	}
	got, _ := r.GetByID(ctx, "trip-1")
	if got.SeatsAvailable != 0 {
		t.Fatalf("SeatsAvailable=%d", got.SeatsAvailable)
	}
}
