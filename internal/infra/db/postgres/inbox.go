package postgres

import "context"

// Inbox records processed payment events per consumer.
type Inbox struct {
	db       DB
	consumer string
}

func NewInbox(db DB, consumer string) *Inbox {
	return &Inbox{db: db, consumer: consumer}
}

func (i *Inbox) Seen(ctx context.Context, eventID string) (bool, error) {
	tag, err := i.db.Exec(ctx,
		`INSERT INTO payment_inbox (event_id, consumer) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		eventID, i.consumer,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 0, nil
}

func (i *Inbox) Forget(ctx context.Context, eventID string) error {
	_, err := i.db.Exec(ctx, `DELETE FROM payment_inbox WHERE event_id = $1 AND consumer = $2`, eventID, i.consumer)
	return err
}
