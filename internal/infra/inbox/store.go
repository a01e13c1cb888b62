package inbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-service/internal/infra/payments"
)

const defaultRetention = 30 * 24 * time.Hour

// Store records processed gateway events per consumer in Mongo. Entries expire after the
// retention window, which must exceed the gateway's redelivery horizon.
type Store struct {
	col       *mongo.Collection
	consumer  string
	retention time.Duration
	now       func() time.Time
}

func NewStore(db *mongo.Database, consumer string) *Store {
	return &Store{col: db.Collection("payment_inbox"), consumer: consumer, retention: defaultRetention, now: time.Now}
}

// EnsureIndexes creates the dedupe key and the expiry index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "consumer", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(s.retention.Seconds())),
		},
	})
	if err != nil {
		return fmt.Errorf("inbox.EnsureIndexes: %w", err)
	}
	return nil
}

// Seen claims eventID for this consumer and reports whether it had been claimed before.
func (s *Store) Seen(ctx context.Context, eventID string) (bool, error) {
	doc := bson.M{"event_id": eventID, "consumer": s.consumer, "received_at": s.now().UTC()}
	_, err := s.col.InsertOne(ctx, doc)
	if err == nil {
		return false, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return true, nil
	}
	return false, err
}

func (s *Store) Forget(ctx context.Context, eventID string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"event_id": eventID, "consumer": s.consumer})
	return err
}

var _ payments.Inbox = (*Store)(nil)
