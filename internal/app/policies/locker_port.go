package policies

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("locks: listing lock not acquired")

// ListingLocker serializes booking creation per listing. Different listings never contend.
// The returned release func is safe to call more than once.
type ListingLocker interface {
	Lock(ctx context.Context, listingID string) (release func(), err error)
}
