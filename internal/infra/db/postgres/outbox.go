package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	appoutbox "booking-service/internal/app/outbox"
)

// OutboxRepo appends records inside a unit's transaction.
type OutboxRepo struct {
	db DB
}

func (r *OutboxRepo) Add(ctx context.Context, record appoutbox.EventRecord) error {
	const op = "postgres.OutboxRepo.Add"
	headers := record.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO outbox (id, name, payload, occurred_at, aggregate, headers)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.ID, record.Name, record.Payload, record.OccurredAt.UTC(), record.Aggregate, headers,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// OutboxStore is the relay side. Concurrent workers skip each other's rows.
type OutboxStore struct {
	db         DB
	claimLease time.Duration
}

func NewOutboxStore(db DB) *OutboxStore {
	return &OutboxStore{db: db, claimLease: time.Minute}
}

func (s *OutboxStore) Flush(context.Context) error {
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*appoutbox.Message, error) {
	const op = "postgres.OutboxStore.Claim"
	var msg appoutbox.Message
	err := s.db.QueryRow(ctx,
		`UPDATE outbox
		 SET state = 'CLAIMED', claimed_by = $1, claimed_at = now(), attempts = attempts + 1
		 WHERE id = (
		     SELECT id FROM outbox
		     WHERE (state IN ('NEW', 'FAILED') AND next_attempt_at <= now())
		        OR (state = 'CLAIMED' AND claimed_at <= now() - make_interval(secs => $2))
		     ORDER BY next_attempt_at
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, name, payload, occurred_at, aggregate, headers, attempts`,
		workerID, s.claimLease.Seconds(),
	).Scan(&msg.ID, &msg.Name, &msg.Payload, &msg.OccurredAt, &msg.Aggregate, &msg.Headers, &msg.Attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	msg.OccurredAt = msg.OccurredAt.UTC()
	return &msg, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `UPDATE outbox SET state = 'SENT', sent_at = now(), last_error = '' WHERE id = $1`, id)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE outbox SET state = 'FAILED', next_attempt_at = $2, last_error = $3 WHERE id = $1`,
		id, next.UTC(), errMsg)
	return err
}

var (
	_ appoutbox.Outbox  = (*OutboxRepo)(nil)
	_ appoutbox.Store   = (*OutboxStore)(nil)
	_ appoutbox.Flusher = (*OutboxStore)(nil)
)
