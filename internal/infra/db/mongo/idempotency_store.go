package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"booking-service/internal/app/middleware"
)

const idempotencyCollection = "app_idempotency"

type IdempotencyStore struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewIdempotencyStore(db *mongo.Database, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{col: db.Collection(idempotencyCollection), ttl: ttl}
}

// Expiry is handled by a TTL index on expires_at.
func ensureIdempotencyIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(idempotencyCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	err := s.col.FindOne(ctx, bson.M{"_id": key, "reserved": false, "expires_at": bson.M{"$gt": time.Now().UTC()}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: doc.ID, Payload: doc.Payload, OccurredAt: doc.OccurredAt}, true, nil
}

// Reserve inserts a placeholder; the unique _id makes concurrent reservations lose with a duplicate key.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	now := time.Now().UTC()
	_, _ = s.col.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lte": now}})
	_, err := s.col.InsertOne(ctx, idempotencyDocument{ID: key, Reserved: true, CreatedAt: now, ExpiresAt: now.Add(s.ttl)})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	now := time.Now().UTC()
	doc := idempotencyDocument{
		ID:         rec.Key,
		Payload:    rec.Payload,
		OccurredAt: rec.OccurredAt,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttl),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": rec.Key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": key, "reserved": true})
	return err
}

type idempotencyDocument struct {
	ID         string    `bson:"_id"`
	Reserved   bool      `bson:"reserved"`
	Payload    []byte    `bson:"payload,omitempty"`
	OccurredAt time.Time `bson:"occurred_at,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
