package memory

import (
	"context"
	"sync"
	"time"

	"booking-service/internal/app/middleware"
)

type idempotencyEntry struct {
	rec       middleware.IdempotencyRecord
	reserved  bool
	expiresAt time.Time
}

// IdempotencyStore stores results in memory until TTL elapses.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]idempotencyEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{items: make(map[string]idempotencyEntry), ttl: ttl, now: time.Now}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(key)
	if !ok || e.reserved {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return e.rec, true, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.items[key] = idempotencyEntry{reserved: true, expiresAt: s.now().Add(s.ttl)}
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = idempotencyEntry{rec: rec, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && e.reserved {
		delete(s.items, key)
	}
	return nil
}

func (s *IdempotencyStore) live(key string) (idempotencyEntry, bool) {
	e, ok := s.items[key]
	if !ok {
		return idempotencyEntry{}, false
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.items, key)
		return idempotencyEntry{}, false
	}
	return e, true
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
