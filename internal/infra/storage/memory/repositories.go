package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
)

// ListingRepository is an in-memory listing catalog.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]domainlistings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]domainlistings.Listing),
	}
}

// ByID returns a copy of the listing or ErrListingNotFound.
func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return &listing, nil
}

// Save stores/updates a listing entry.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = *listing
	return nil
}

// BookingRepository keeps bookings in memory. Insert checks for overlaps and writes under
// the same lock, which makes it the availability arbiter for this backend.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
	order []domainbooking.BookingID
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) ByPaymentIntent(ctx context.Context, intentID string) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if b := r.items[id]; intentID != "" && b.PaymentIntentID == intentID {
			return b.Clone(), nil
		}
	}
	return nil, domainbooking.ErrBookingNotFound
}

func (r *BookingRepository) FindActiveOverlapping(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overlapping(listingID, dr), nil
}

func (r *BookingRepository) overlapping(listingID domainlistings.ListingID, dr daterange.DateRange) []*domainbooking.Booking {
	var out []*domainbooking.Booking
	for _, id := range r.order {
		b := r.items[id]
		if b.ListingID == listingID && b.State.IsActive() && b.Range.Overlaps(dr) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[b.ID]; exists {
		return domainbooking.ErrConflict
	}
	if b.State.IsActive() && len(r.overlapping(b.ListingID, b.Range)) > 0 {
		return domainbooking.ErrConflict
	}
	stored := b.Clone()
	stored.Version = 1
	r.items[b.ID] = stored
	r.order = append(r.order, b.ID)
	b.Version = 1
	return nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, b *domainbooking.Booking, expected domainbooking.BookingState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if current.State != expected {
		return domainbooking.ErrConcurrentUpdate
	}
	next := current.Clone()
	next.State = b.State
	next.CancelReason = b.CancelReason
	next.UpdatedAt = b.UpdatedAt
	next.Version = current.Version + 1
	r.items[b.ID] = next
	b.Version = next.Version
	return nil
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.GuestID == guestID }), nil
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID domainlistings.HostID) ([]*domainbooking.Booking, error) {
	return r.filter(func(b *domainbooking.Booking) bool { return b.HostID == hostID }), nil
}

func (r *BookingRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	out := r.filter(func(b *domainbooking.Booking) bool {
		return b.State == domainbooking.StatePending && b.CreatedAt.Before(createdBefore)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (r *BookingRepository) ListFinishedConfirmed(ctx context.Context, checkOutBy time.Time, limit int) ([]*domainbooking.Booking, error) {
	out := r.filter(func(b *domainbooking.Booking) bool {
		return b.State == domainbooking.StateConfirmed && !b.Range.CheckOut.After(checkOutBy)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.CheckOut.Before(out[j].Range.CheckOut) })
	return truncate(out, limit), nil
}

// filter returns clones ordered newest first.
func (r *BookingRepository) filter(keep func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, id := range r.order {
		if b := r.items[id]; keep(b) {
			out = append(out, b.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// restore puts back a snapshot taken before a write. A nil snapshot removes the booking.
func (r *BookingRepository) restore(id domainbooking.BookingID, snapshot *domainbooking.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if snapshot != nil {
		r.items[id] = snapshot
		return
	}
	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *BookingRepository) snapshot(id domainbooking.BookingID) *domainbooking.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if b, ok := r.items[id]; ok {
		return b.Clone()
	}
	return nil
}

// Len reports the number of stored bookings.
func (r *BookingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func truncate(items []*domainbooking.Booking, limit int) []*domainbooking.Booking {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
var _ domainlistings.Repository = (*ListingRepository)(nil)
