package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
	"booking-service/internal/infra/storage/memory"
)

func TestCheckAvailability(t *testing.T) {
	ctx := context.Background()
	listings := memory.NewListingRepository()
	bookings := memory.NewBookingRepository()
	listing := &domainlistings.Listing{ID: "listing-1", Host: "host-1", Title: "Loft", NightlyRate: money.Must(10000, "USD"), GuestsLimit: 2}
	require.NoError(t, listings.Save(ctx, listing))

	dr, err := daterange.Parse("2031-06-01", "2031-06-05")
	require.NoError(t, err)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID: "b-1", Listing: listing, GuestID: "guest-1", Range: dr, Guests: 1, CreatedAt: time.Date(2031, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NoError(t, bookings.Insert(ctx, b))

	h := &CheckAvailabilityHandler{UoWFactory: memory.Factory{ListingsRepo: listings, BookingRepo: bookings, OutboxStore: memory.NewOutbox()}}

	busy, err := h.Handle(ctx, CheckAvailabilityQuery{ListingID: "listing-1", CheckIn: "2031-06-03", CheckOut: "2031-06-07"})
	require.NoError(t, err)
	assert.False(t, busy.Available)
	require.Len(t, busy.Conflicts, 1)
	assert.Equal(t, "2031-06-01", busy.Conflicts[0].CheckIn)
	assert.Equal(t, "2031-06-05", busy.Conflicts[0].CheckOut)
	assert.Equal(t, "PENDING", busy.Conflicts[0].Status)

	free, err := h.Handle(ctx, CheckAvailabilityQuery{ListingID: "listing-1", CheckIn: "2031-06-05", CheckOut: "2031-06-08"})
	require.NoError(t, err)
	assert.True(t, free.Available)
	assert.Empty(t, free.Conflicts)

	_, err = h.Handle(ctx, CheckAvailabilityQuery{ListingID: "missing", CheckIn: "2031-06-05", CheckOut: "2031-06-08"})
	assert.ErrorIs(t, err, domainlistings.ErrListingNotFound)

	_, err = h.Handle(ctx, CheckAvailabilityQuery{ListingID: "listing-1", CheckIn: "2031-06-08", CheckOut: "2031-06-05"})
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}
