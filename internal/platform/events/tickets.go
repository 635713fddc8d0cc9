package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

type TicketEventType string

const (
	TicketPurchased TicketEventType = "TicketPurchased"
	TicketPaid      TicketEventType = "TicketPaid"
	TicketCanceled  TicketEventType = "TicketCanceled"
)

// TicketEvent is the payload published on TopicTickets.
type TicketEvent struct {
	Type            TicketEventType `json:"type"`
	TicketID        string          `json:"ticketId"`
	TripID          string          `json:"tripId"`
	PassengerID     string          `json:"passengerId"`
	Status          string          `json:"status"`
	Seat            *int            `json:"seat,omitempty"`
	AmountPaidCents int64           `json:"amountPaidCents"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

type TicketPublisher struct {
	pub message.Publisher
}

func NewTicketPublisher(pub message.Publisher) *TicketPublisher {
	return &TicketPublisher{pub: pub}
}

func (p *TicketPublisher) TicketChanged(ctx context.Context, typ TicketEventType, t domain.Ticket) error {
	payload, err := json.Marshal(TicketEvent{
		Type:            typ,
		TicketID:        string(t.ID),
		TripID:          string(t.TripID),
		PassengerID:     string(t.PassengerID),
		Status:          string(t.Status),
		Seat:            t.Seat,
		AmountPaidCents: t.AmountPaidCents,
		OccurredAt:      t.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal ticket event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("type", string(typ))
	if err := p.pub.Publish(TopicTickets, msg); err != nil {
		return fmt.Errorf("publish ticket event: %w", err)
	}
	return nil
}

// TicketHandler reacts to one ticket event. A returned error is retried by
// the consumer router.
type TicketHandler func(ctx context.Context, ev TicketEvent) error

func ticketMessageHandler(handle TicketHandler, log *zap.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var ev TicketEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			log.Error("drop malformed ticket event", zap.String("messageId", msg.UUID), zap.Error(err))
			return nil
		}
		if err := handle(msg.Context(), ev); err != nil {
			return fmt.Errorf("handle %s for ticket %s: %w", ev.Type, ev.TicketID, err)
		}
		return nil
	}
}

// LogTicketEvents is the default TicketHandler: it writes one structured line per event.
func LogTicketEvents(log *zap.Logger) TicketHandler {
	return func(_ context.Context, ev TicketEvent) error {
		log.Info("ticket event",
			zap.String("type", string(ev.Type)),
			zap.String("ticketId", ev.TicketID),
			zap.String("tripId", ev.TripID),
			zap.String("passengerId", ev.PassengerID),
			zap.String("status", ev.Status),
		)
		return nil
	}
}
