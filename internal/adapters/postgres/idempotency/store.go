package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/omnibus-tickets/omnibus-api/internal/ports/out/idempotency"
)

var _ idempotency.Store = (*Store)(nil)

// Store keeps idempotency entries in the idempotency_keys table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Claim expires a stale binding, then inserts a fresh one. Concurrent claims on
// the same scope race on the primary key; the loser reads the winner's entry.
func (s *Store) Claim(ctx context.Context, scope idempotency.Scope, requestHash string, at time.Time) (idempotency.Entry, bool, error) {
	at = at.UTC()
	if _, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE idempotency_key = $1 AND subject_id = $2 AND route = $3 AND created_at < $4
	`, string(scope.Key), string(scope.Subject), scope.Route, at.Add(-idempotency.Retention)); err != nil {
		return idempotency.Entry{}, false, fmt.Errorf("expire idempotency key: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, subject_id, route, request_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key, subject_id, route) DO NOTHING
	`, string(scope.Key), string(scope.Subject), scope.Route, requestHash, at)
	if err != nil {
		return idempotency.Entry{}, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return idempotency.Entry{}, false, nil
	}

	var e idempotency.Entry
	err = s.pool.QueryRow(ctx, `
		SELECT request_hash, status_code, content_type, body, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1 AND subject_id = $2 AND route = $3
	`, string(scope.Key), string(scope.Subject), scope.Route).Scan(&e.RequestHash, &e.StatusCode, &e.ContentType, &e.Body, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Pruned between the insert and the read.
		return idempotency.Entry{}, false, nil
	}
	if err != nil {
		return idempotency.Entry{}, false, fmt.Errorf("read idempotency key: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, true, nil
}

func (s *Store) Complete(ctx context.Context, scope idempotency.Scope, requestHash string, statusCode int, contentType string, body []byte) error {
	if body == nil {
		body = []byte{}
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE idempotency_keys
		SET status_code = $5, content_type = $6, body = $7
		WHERE idempotency_key = $1 AND subject_id = $2 AND route = $3 AND request_hash = $4
	`, string(scope.Key), string(scope.Subject), scope.Route, requestHash, statusCode, contentType, body)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, scope idempotency.Scope, requestHash string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_keys
		WHERE idempotency_key = $1 AND subject_id = $2 AND route = $3 AND request_hash = $4 AND status_code = 0
	`, string(scope.Key), string(scope.Subject), scope.Route, requestHash)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
