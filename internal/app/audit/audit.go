// Package audit records who changed what.
package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/app/apperr"
	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/auditlog"
	clockport "github.com/omnibus-tickets/omnibus-api/internal/ports/out/clock"
)

// Recorder accepts audit entries. Implementations may be asynchronous.
type Recorder interface {
	Record(ctx context.Context, e domain.AuditEntry) error
}

type actorKey struct{}

// WithActor stores the username recorded for mutations made with ctx.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

// ActorFromContext returns the username stored by WithActor, or domain.AuditSystemUser.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return domain.AuditSystemUser
}

// Logger builds entries and hands them to a Recorder. A nil *Logger discards everything.
//
// Recording is best-effort: a failing recorder is logged and never fails the audited operation.
type Logger struct {
	rec   Recorder
	clk   clockport.Clock
	log   *zap.Logger
	newID func() domain.AuditEntryID
}

func NewLogger(rec Recorder, clk clockport.Clock, log *zap.Logger) *Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logger{
		rec: rec,
		clk: clk,
		log: log,
		newID: func() domain.AuditEntryID {
			return domain.AuditEntryID(uuid.NewString())
		},
	}
}

func (l *Logger) Log(ctx context.Context, entity, entityID string, action domain.AuditAction, details string) {
	if l == nil || l.rec == nil {
		return
	}
	e := domain.AuditEntry{
		ID:         l.newID(),
		EntityName: entity,
		EntityID:   entityID,
		Action:     action,
		Username:   ActorFromContext(ctx),
		Details:    details,
		CreatedAt:  l.clk.Now(),
	}
	if err := l.rec.Record(ctx, e); err != nil {
		l.log.Warn("audit record failed",
			zap.String("entity", entity),
			zap.String("entityId", entityID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}
}

// StoreRecorder writes entries straight to a store.
type StoreRecorder struct {
	Store auditlog.Store
}

func (r StoreRecorder) Record(ctx context.Context, e domain.AuditEntry) error {
	return r.Store.Append(ctx, e)
}

// Service exposes the audit trail to administrators.
type Service struct {
	store auditlog.Store

	// MaxLimit bounds how many entries one listing returns.
	MaxLimit int
}

func NewService(store auditlog.Store) *Service {
	return &Service{store: store, MaxLimit: 500}
}

func (s *Service) List(ctx context.Context, p domain.Principal, limit int) ([]domain.AuditEntry, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only administrators can read the audit log")
	}
	if limit < 0 {
		return nil, apperr.Validation("invalid limit", map[string]any{"limit": "must be positive"})
	}
	if limit == 0 || limit > s.MaxLimit {
		limit = s.MaxLimit
	}
	return s.store.List(ctx, limit)
}
