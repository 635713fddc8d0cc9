package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

func TestTicketPublisher_DeliversToHandler(t *testing.T) {
	t.Parallel()

	var (
		mu  sync.Mutex
		got []TicketEvent
	)
	handle := func(_ context.Context, ev TicketEvent) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
		return nil
	}
	bus := startConsumers(t, Consumers{Tickets: handle}, DefaultRetryPolicy)

	seat := 12
	ticket := domain.Ticket{
		ID:              "k-1",
		TripID:          "t-1",
		PassengerID:     "u-1",
		Status:          domain.TicketStatusPending,
		Seat:            &seat,
		AmountPaidCents: 4500,
		UpdatedAt:       time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewTicketPublisher(bus.Publisher).TicketChanged(context.Background(), TicketPurchased, ticket))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	ev := got[0]
	assert.Equal(t, TicketPurchased, ev.Type)
	assert.Equal(t, "k-1", ev.TicketID)
	assert.Equal(t, "PENDING", ev.Status)
	require.NotNil(t, ev.Seat)
	assert.Equal(t, 12, *ev.Seat)
	assert.Equal(t, int64(4500), ev.AmountPaidCents)
}
