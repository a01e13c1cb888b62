package booking

import (
	"context"
	"time"

	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
)

// Repository persists bookings.
//
// Insert must re-check availability atomically with the write: when an active booking on the same
// listing overlaps the new range it returns ErrConflict and stores nothing.
// UpdateStatus writes the booking's current state only if the stored state still equals expected,
// returning ErrBookingNotFound or ErrConcurrentUpdate otherwise.
type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	ByPaymentIntent(ctx context.Context, intentID string) (*Booking, error)
	FindActiveOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*Booking, error)
	Insert(ctx context.Context, b *Booking) error
	UpdateStatus(ctx context.Context, b *Booking, expected BookingState) error
	ListByGuest(ctx context.Context, guestID string) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID listings.HostID) ([]*Booking, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*Booking, error)
	ListFinishedConfirmed(ctx context.Context, checkOutBy time.Time, limit int) ([]*Booking, error)
}
