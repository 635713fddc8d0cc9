// Package auditlog persists audit entries through gorm.
package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
)

type auditRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntityName string    `gorm:"not null"`
	EntityID   string    `gorm:"not null"`
	Action     string    `gorm:"not null"`
	Username   string    `gorm:"not null"`
	Details    string    `gorm:"not null;default:''"`
	CreatedAt  time.Time `gorm:"not null;index:audit_logs_created_idx,sort:desc"`
}

func (auditRow) TableName() string { return "audit_logs" }

// Store is a gorm implementation of auditlog.Store.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStore wraps an existing database handle. The audit_logs table is created by the
// SQL migrations; autoMigrate also lets gorm create it, for databases set up without them.
func NewStore(sqlDB *sql.DB, autoMigrate bool, log *zap.Logger) (*Store, error) {
	if sqlDB == nil {
		return nil, errors.New("nil database handle")
	}
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	if autoMigrate {
		if err := db.AutoMigrate(&auditRow{}); err != nil {
			return nil, fmt.Errorf("migrate audit_logs: %w", err)
		}
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Append(ctx context.Context, e domain.AuditEntry) error {
	id, err := uuid.Parse(string(e.ID))
	if err != nil {
		return fmt.Errorf("invalid audit entry id: %w", err)
	}
	row := auditRow{
		ID:         id,
		EntityName: e.EntityName,
		EntityID:   e.EntityID,
		Action:     string(e.Action),
		Username:   e.Username,
		Details:    e.Details,
		CreatedAt:  e.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Error("append audit entry", zap.String("entity", e.EntityName), zap.String("entityId", e.EntityID), zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	var rows []auditRow
	q := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.AuditEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AuditEntry{
			ID:         domain.AuditEntryID(r.ID.String()),
			EntityName: r.EntityName,
			EntityID:   r.EntityID,
			Action:     domain.AuditAction(r.Action),
			Username:   r.Username,
			Details:    r.Details,
			CreatedAt:  r.CreatedAt.UTC(),
		})
	}
	return out, nil
}
