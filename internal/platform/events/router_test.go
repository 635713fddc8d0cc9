package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memauditlog "github.com/omnibus-tickets/omnibus-api/internal/adapters/memory/auditlog"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

// flakyStore fails the first failures appends, then delegates to a memory store.
type flakyStore struct {
	*memauditlog.Store

	mu       sync.Mutex
	failures int
	attempts int
}

func (s *flakyStore) Append(ctx context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	s.attempts++
	fail := s.attempts <= s.failures
	s.mu.Unlock()
	if fail {
		return errors.New("connection refused")
	}
	return s.Store.Append(ctx, e)
}

func (s *flakyStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

var fastRetry = RetryPolicy{MaxRetries: 2, InitialInterval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond}

func testEntry(id string) domain.AuditEntry {
	return domain.AuditEntry{
		ID:         domain.AuditEntryID(id),
		EntityName: "Trip",
		EntityID:   "t-1",
		Action:     domain.AuditActionUpdate,
		Username:   "ops@example.com",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestConsumerRouter_RetriesTransientStoreFailure(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: memauditlog.NewStore(), failures: 2}
	bus := startConsumers(t, Consumers{Audit: store}, fastRetry)

	require.NoError(t, NewAuditPublisher(bus.Publisher).Record(context.Background(), testEntry("a-retry")))

	require.Eventually(t, func() bool {
		entries, _ := store.List(context.Background(), 0)
		return len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, store.Attempts())
}

func TestConsumerRouter_ParksMessageAfterRetries(t *testing.T) {
	t.Parallel()

	store := &flakyStore{Store: memauditlog.NewStore(), failures: 1 << 30}
	bus := startConsumers(t, Consumers{Audit: store}, fastRetry)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	poisoned, err := bus.Subscriber.Subscribe(ctx, TopicPoison)
	require.NoError(t, err)

	require.NoError(t, NewAuditPublisher(bus.Publisher).Record(context.Background(), testEntry("a-poison")))

	select {
	case msg := <-poisoned:
		msg.Ack()
		assert.Contains(t, msg.Metadata.Get(middleware.ReasonForPoisonedKey), "connection refused")
		assert.Equal(t, TopicAudit, msg.Metadata.Get(middleware.PoisonedTopicKey))
		assert.Contains(t, string(msg.Payload), `"id":"a-poison"`)
	case <-time.After(3 * time.Second):
		t.Fatal("message was not parked on the poison topic")
	}

	// Once parked, the message is not handled again.
	assert.Equal(t, 1+fastRetry.MaxRetries, store.Attempts())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1+fastRetry.MaxRetries, store.Attempts())
}
