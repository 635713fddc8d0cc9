package documentrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnibus-tickets/omnibus-api/internal/domain"
	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/documentrepo"
)

// Repo is a Postgres implementation of documentrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Upsert(ctx context.Context, d documentrepo.Document) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(d.ID))
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	user, err := uuid.Parse(string(d.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO documents (id, user_id, type, object_key, content_type, size_bytes, validated, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			type = EXCLUDED.type,
			object_key = EXCLUDED.object_key,
			content_type = EXCLUDED.content_type,
			size_bytes = EXCLUDED.size_bytes,
			validated = EXCLUDED.validated,
			uploaded_at = EXCLUDED.uploaded_at
	`,
		id,
		user,
		string(d.Type),
		d.ObjectKey,
		d.ContentType,
		d.SizeBytes,
		d.Validated,
		d.UploadedAt.UTC(),
	)
	return err
}

func (r *Repo) GetByUser(ctx context.Context, userID domain.UserID) (documentrepo.Document, error) {
	if r.pool == nil {
		return documentrepo.Document{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return documentrepo.Document{}, documentrepo.ErrNotFound
	}
	var (
		id, user uuid.UUID
		typ      string
		d        documentrepo.Document
	)
	err = r.pool.QueryRow(ctx, `
		SELECT id, user_id, type, object_key, content_type, size_bytes, validated, uploaded_at
		FROM documents
		WHERE user_id = $1
	`, uid).Scan(&id, &user, &typ, &d.ObjectKey, &d.ContentType, &d.SizeBytes, &d.Validated, &d.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return documentrepo.Document{}, documentrepo.ErrNotFound
		}
		return documentrepo.Document{}, err
	}
	d.ID = domain.DocumentID(id.String())
	d.UserID = domain.UserID(user.String())
	d.Type = domain.DocumentType(typ)
	d.UploadedAt = d.UploadedAt.UTC()
	return d, nil
}
