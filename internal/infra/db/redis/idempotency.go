package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"booking-service/internal/app/middleware"
)

const (
	lockValue    = "LOCK"
	resultPrefix = "RES:"
)

// IdempotencyStore keeps a reservation marker or the JSON encoded result under one key.
type IdempotencyStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl, lockTTL: time.Minute}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	v, err := s.rdb.Get(ctx, keyIdempotency(key)).Result()
	if errors.Is(err, redis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("redis.IdempotencyStore.Get: %w", err)
	}
	if !strings.HasPrefix(v, resultPrefix) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	var rec middleware.IdempotencyRecord
	if err := json.Unmarshal([]byte(strings.TrimPrefix(v, resultPrefix)), &rec); err != nil {
		return middleware.IdempotencyRecord{}, false, fmt.Errorf("redis.IdempotencyStore.Get: %w", err)
	}
	return rec, true, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, keyIdempotency(key), lockValue, s.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis.IdempotencyStore.Reserve: %w", err)
	}
	return ok, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyIdempotency(rec.Key), resultPrefix+string(payload), s.ttl).Err()
}

// Release drops a reservation; stored results are left alone.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	k := keyIdempotency(key)
	v, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	if v != lockValue {
		return nil
	}
	return s.rdb.Del(ctx, k).Err()
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
