package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"booking-service/internal/app/policies"
	"booking-service/internal/infra/security"
)

// releaseScript deletes the lock only while it still holds our token.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

// ListingLocker is a per-listing mutex shared by every replica. The TTL bounds how long a
// crashed holder can block a listing; it must exceed the gateway timeout.
type ListingLocker struct {
	rdb     *redis.Client
	ttl     time.Duration
	retry   time.Duration
	release *redis.Script
	tokens  security.RandomTokenGenerator
}

func NewListingLocker(rdb *redis.Client, ttl time.Duration) *ListingLocker {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &ListingLocker{
		rdb:     rdb,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		release: redis.NewScript(releaseScript),
		tokens:  security.RandomTokenGenerator{Size: 16},
	}
}

// Lock spins until the key is free, ctx is done, or one TTL has passed.
func (l *ListingLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	const op = "redis.ListingLocker.Lock"
	key := keyListingLock(listingID)
	token, err := l.tokens.NewToken()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	deadline := time.Now().Add(l.ttl)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", op, policies.ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = l.release.Run(releaseCtx, l.rdb, []string{key}, token).Err()
	}, nil
}

var _ policies.ListingLocker = (*ListingLocker)(nil)
