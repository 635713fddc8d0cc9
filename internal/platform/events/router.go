package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/auditlog"
)

// TopicPoison receives messages whose handler kept failing after every retry.
// The reason is in the reason_poisoned metadata key.
const TopicPoison = "omnibus.poison"

// RetryPolicy bounds how often a failing message is handled again before it
// is parked on TopicPoison.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy gives a store outage roughly half a minute to recover.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      6,
	InitialInterval: 250 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

// Consumers are the handlers NewConsumerRouter subscribes.
type Consumers struct {
	Audit   auditlog.Store
	Tickets TicketHandler
}

// NewConsumerRouter subscribes the audit and ticket consumers on bus. Failing
// messages are retried with exponential backoff, then published to
// TopicPoison and acked so one bad message cannot stall a topic.
//
// Run the router with Run(ctx); it stops when ctx is done.
func NewConsumerRouter(bus *Bus, c Consumers, policy RetryPolicy, log *zap.Logger) (*message.Router, error) {
	wlog := NewWatermillLogger(log)
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, wlog)
	if err != nil {
		return nil, fmt.Errorf("events router: %w", err)
	}

	poison, err := middleware.PoisonQueue(bus.Publisher, TopicPoison)
	if err != nil {
		return nil, fmt.Errorf("poison queue: %w", err)
	}
	// First added runs outermost: retries are exhausted before a message is poisoned.
	router.AddMiddleware(
		poison,
		middleware.Retry{
			MaxRetries:      policy.MaxRetries,
			InitialInterval: policy.InitialInterval,
			MaxInterval:     policy.MaxInterval,
			Multiplier:      2,
			Logger:          wlog,
		}.Middleware,
		middleware.Recoverer,
	)

	if c.Audit != nil {
		router.AddNoPublisherHandler("audit_store", TopicAudit, bus.Subscriber, AuditHandler(c.Audit, log))
	}
	if c.Tickets != nil {
		router.AddNoPublisherHandler("ticket_events", TopicTickets, bus.Subscriber, ticketMessageHandler(c.Tickets, log))
	}
	return router, nil
}
