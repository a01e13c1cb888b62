package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"booking-service/internal/app/middleware"
)

type IdempotencyStore struct {
	db  DB
	ttl time.Duration
}

func NewIdempotencyStore(db DB, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{db: db, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	rec := middleware.IdempotencyRecord{Key: key}
	err := s.db.QueryRow(ctx,
		`SELECT payload, occurred_at FROM idempotency_keys
		 WHERE key = $1 AND NOT reserved AND expires_at > now()`, key,
	).Scan(&rec.Payload, &rec.OccurredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return rec, true, nil
}

// Reserve takes the key unless a live row holds it; expired rows are overwritten.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, reserved, expires_at)
		 VALUES ($1, TRUE, $2)
		 ON CONFLICT (key) DO UPDATE
		   SET reserved = TRUE, payload = NULL, occurred_at = NULL, expires_at = EXCLUDED.expires_at
		   WHERE idempotency_keys.expires_at <= now()`,
		key, time.Now().UTC().Add(s.ttl),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, reserved, payload, occurred_at, expires_at)
		 VALUES ($1, FALSE, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE
		   SET reserved = FALSE, payload = EXCLUDED.payload, occurred_at = EXCLUDED.occurred_at, expires_at = EXCLUDED.expires_at`,
		rec.Key, rec.Payload, rec.OccurredAt.UTC(), time.Now().UTC().Add(s.ttl),
	)
	return err
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND reserved`, key)
	return err
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
