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
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/auditlog"
)

type auditMessage struct {
	ID         string    `json:"id"`
	EntityName string    `json:"entityName"`
	EntityID   string    `json:"entityId"`
	Action     string    `json:"action"`
	Username   string    `json:"username"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuditPublisher publishes audit entries to TopicAudit.
type AuditPublisher struct {
	pub message.Publisher
}

func NewAuditPublisher(pub message.Publisher) *AuditPublisher {
	return &AuditPublisher{pub: pub}
}

func (p *AuditPublisher) Record(ctx context.Context, e domain.AuditEntry) error {
	payload, err := json.Marshal(auditMessage{
		ID:         string(e.ID),
		EntityName: e.EntityName,
		EntityID:   e.EntityID,
		Action:     string(e.Action),
		Username:   e.Username,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if err := p.pub.Publish(TopicAudit, msg); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}

// AuditHandler persists audit messages into store.
//
// Messages that cannot be decoded are logged and dropped. Store failures are
// returned so the consumer router retries them with backoff.
func AuditHandler(store auditlog.Store, log *zap.Logger) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		var m auditMessage
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			log.Error("drop malformed audit message", zap.String("messageId", msg.UUID), zap.Error(err))
			return nil
		}
		entry := domain.AuditEntry{
			ID:         domain.AuditEntryID(m.ID),
			EntityName: m.EntityName,
			EntityID:   m.EntityID,
			Action:     domain.AuditAction(m.Action),
			Username:   m.Username,
			Details:    m.Details,
			CreatedAt:  m.CreatedAt,
		}
		if err := store.Append(msg.Context(), entry); err != nil {
			return fmt.Errorf("append audit entry %s: %w", m.ID, err)
		}
		return nil
	}
}
