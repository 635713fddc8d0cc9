package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/auditlog"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// startConsumers runs a consumer router on a fresh in-process bus and stops it
// when the test ends.
func startConsumers(t *testing.T, c Consumers, policy RetryPolicy) *Bus {
	t.Helper()
	log := zap.NewNop()
	bus := NewGoChannelBus(NewWatermillLogger(log))
	t.Cleanup(func() { _ = bus.Close() })

	router, err := NewConsumerRouter(bus, c, policy, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- router.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("consumer router did not stop after cancel")
		}
	})

	select {
	case <-router.Running():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer router did not start")
	}
	return bus
}

func TestAuditPublisher_ConsumedIntoStore(t *testing.T) {
	t.Parallel()

	store := memauditlog.NewStore()
	bus := startConsumers(t, Consumers{Audit: store}, DefaultRetryPolicy)

	entry := domain.AuditEntry{
		ID:         "a-1",
		EntityName: "User",
		EntityID:   "u-1",
		Action:     domain.AuditActionCreate,
		Username:   "ana@example.com",
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewAuditPublisher(bus.Publisher).Record(context.Background(), entry))

	require.Eventually(t, func() bool {
		entries, _ := store.List(context.Background(), 0)
		return len(entries) > 0
	}, 2*time.Second, 10*time.Millisecond)

	entries, err := store.List(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, entry, entries[0])
}

func TestAuditHandler_MalformedIsDropped(t *testing.T) {
	t.Parallel()

	store := memauditlog.NewStore()
	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))

	assert.NoError(t, AuditHandler(store, zap.NewNop())(msg))
	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
