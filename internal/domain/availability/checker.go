package availability

import (
	"context"
	"errors"
	"fmt"

	domainbooking "booking-service/internal/domain/booking"
	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
)

var ErrStoreRequired = errors.New("availability: booking store required")

// Checker decides whether a listing is free for a candidate range.
type Checker struct {
	Bookings domainbooking.Repository
}

func NewChecker(bookings domainbooking.Repository) Checker {
	return Checker{Bookings: bookings}
}

// IsAvailable reports whether no PENDING or CONFIRMED booking on the listing overlaps [checkIn, checkOut).
func (c Checker) IsAvailable(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) (bool, error) {
	conflicts, err := c.Conflicts(ctx, listingID, dr)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts returns the active bookings that overlap the candidate range.
// Store results are re-filtered with the half-open overlap test.
func (c Checker) Conflicts(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	if c.Bookings == nil {
		return nil, ErrStoreRequired
	}
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	candidates, err := c.Bookings.FindActiveOverlapping(ctx, listingID, dr)
	if err != nil {
		return nil, fmt.Errorf("availability: load bookings: %w", err)
	}
	out := make([]*domainbooking.Booking, 0, len(candidates))
	for _, b := range candidates {
		if b.ListingID != listingID || !b.State.IsActive() {
			continue
		}
		if b.Range.Overlaps(dr) {
			out = append(out, b)
		}
	}
	return out, nil
}
