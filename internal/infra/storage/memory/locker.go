package memory

import (
	"context"
	"sync"

	"booking-service/internal/app/policies"
)

type keyedSlot struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker serializes callers per key inside one process. Slots are dropped once unused.
type KeyedLocker struct {
	mu    sync.Mutex
	slots map[string]*keyedSlot
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{slots: make(map[string]*keyedSlot)}
}

func (l *KeyedLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[listingID]
	if !ok {
		slot = &keyedSlot{ch: make(chan struct{}, 1)}
		l.slots[listingID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(listingID, slot)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(listingID, slot)
		})
	}, nil
}

func (l *KeyedLocker) unref(key string, slot *keyedSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

var _ policies.ListingLocker = (*KeyedLocker)(nil)
