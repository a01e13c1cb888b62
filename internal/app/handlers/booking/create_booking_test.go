package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingapp "booking-service/internal/app/handlers/booking"
	"booking-service/internal/app/policies"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

func TestCreateBookingReturnsPendingBookingWithClientSecret(t *testing.T) {
	h := newHarness(t)

	res := h.create(t, "guest-1", "listing-150", "2031-07-01", "2031-07-04")

	b := res.Booking
	assert.Equal(t, "PENDING", b.Status)
	assert.Equal(t, "host-2", b.HostID)
	assert.Equal(t, 3, b.Nights)
	assert.Equal(t, int64(45000), b.TotalPrice.Amount)
	assert.Equal(t, "USD", b.TotalPrice.Currency)
	assert.NotEmpty(t, b.PaymentIntentID)
	assert.Equal(t, b.PaymentIntentID+"_secret", res.ClientSecret)

	req, ok := h.gateway.Request(b.PaymentIntentID)
	require.True(t, ok)
	assert.Equal(t, money.Must(45000, "USD"), req.Amount)
	assert.Equal(t, b.ID, req.Metadata["booking_id"])
	assert.Equal(t, "listing-150", req.Metadata["listing_id"])
	assert.Equal(t, "guest-1", req.Metadata["user_id"])
	assert.Equal(t, "2031-07-01", req.Metadata["check_in"])
	assert.Equal(t, "2031-07-04", req.Metadata["check_out"])

	pending := h.outbox.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "booking.requested", pending[0].Name)
	assert.Equal(t, b.ID, pending[0].Aggregate)
}

func TestCreateBookingRespectsHalfOpenRanges(t *testing.T) {
	h := newHarness(t)
	h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")

	_, err := h.createHandler(nil).Handle(context.Background(), createCmd("guest-2", "listing-100", "2031-06-03", "2031-06-07"))
	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)

	res, err := h.createHandler(nil).Handle(context.Background(), createCmd("guest-2", "listing-100", "2031-06-05", "2031-06-08"))
	require.NoError(t, err)
	assert.Equal(t, "2031-06-05", res.Booking.CheckIn)
	assert.Equal(t, 2, h.bookings.Len())
	assert.Equal(t, 2, h.gateway.Created())
}

func TestCreateBookingOtherListingDoesNotConflict(t *testing.T) {
	h := newHarness(t)
	h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	h.create(t, "guest-1", "listing-150", "2031-06-01", "2031-06-05")
	assert.Equal(t, 2, h.bookings.Len())
}

func TestCreateBookingConcurrentRequestsYieldSingleWinner(t *testing.T) {
	h := newHarness(t)
	handler := h.createHandler(nil)

	const attempts = 50
	var (
		wg          sync.WaitGroup
		start       = make(chan struct{})
		mu          sync.Mutex
		successes   int
		unavailable int
		other       []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := handler.Handle(context.Background(), createCmd("guest-concurrent", "listing-100", "2031-06-01", "2031-06-05"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domainbooking.ErrUnavailable):
				unavailable++
			default:
				other = append(other, err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, unavailable)
	assert.Equal(t, 1, h.bookings.Len())
	assert.Equal(t, 1, h.gateway.Created())
}

func TestCreateBookingGatewayFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.gateway.FailWith(errors.New("card network down"))

	res, err := h.createHandler(nil).Handle(context.Background(), createCmd("guest-1", "listing-100", "2031-06-01", "2031-06-05"))

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, policies.ErrGateway)
	assert.Equal(t, 0, h.bookings.Len())
	assert.Empty(t, h.outbox.Pending())

	h.gateway.FailWith(nil)
	h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	assert.Equal(t, 1, h.bookings.Len())
}

// racingGateway lets a competing booking land between the availability check and the insert.
type racingGateway struct {
	policies.PaymentGateway
	onCreate func()
}

func (g racingGateway) CreateIntent(ctx context.Context, req policies.IntentRequest) (policies.Intent, error) {
	g.onCreate()
	return g.PaymentGateway.CreateIntent(ctx, req)
}

func TestCreateBookingLostRaceVoidsIntent(t *testing.T) {
	h := newHarness(t)
	listing := &domainlistings.Listing{ID: "listing-100", Host: "host-1", NightlyRate: money.Must(10000, "USD"), GuestsLimit: 4}

	gateway := racingGateway{PaymentGateway: h.gateway, onCreate: func() {
		dr, err := daterange.Parse("2031-06-02", "2031-06-06")
		require.NoError(t, err)
		rival, err := domainbooking.NewBooking(domainbooking.CreateParams{
			ID: "rival", Listing: listing, GuestID: "guest-rival", Range: dr, Guests: 1, CreatedAt: testNow,
		})
		require.NoError(t, err)
		require.NoError(t, h.bookings.Insert(context.Background(), rival))
	}}

	_, err := h.createHandler(gateway).Handle(context.Background(), createCmd("guest-1", "listing-100", "2031-06-01", "2031-06-05"))

	assert.ErrorIs(t, err, domainbooking.ErrUnavailable)
	assert.Equal(t, 1, h.bookings.Len())
	assert.Equal(t, 1, h.gateway.Created())
	assert.Equal(t, 1, h.gateway.Cancelled())
	assert.Empty(t, h.outbox.Pending())
}

func TestCreateBookingRejectsInvalidRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	handler := h.createHandler(nil)

	t.Run("check-in in the past", func(t *testing.T) {
		_, err := handler.Handle(ctx, createCmd("guest-1", "listing-100", "2031-04-30", "2031-05-03"))
		assert.ErrorIs(t, err, domainbooking.ErrCheckInInPast)
	})
	t.Run("same day check-in allowed", func(t *testing.T) {
		_, err := handler.Handle(ctx, createCmd("guest-1", "listing-100", "2031-05-01", "2031-05-02"))
		assert.NoError(t, err)
	})
	t.Run("empty range", func(t *testing.T) {
		_, err := handler.Handle(ctx, createCmd("guest-1", "listing-100", "2031-06-10", "2031-06-10"))
		assert.ErrorIs(t, err, daterange.ErrInvalidRange)
	})
	t.Run("unknown listing", func(t *testing.T) {
		_, err := handler.Handle(ctx, createCmd("guest-1", "listing-missing", "2031-06-10", "2031-06-12"))
		assert.ErrorIs(t, err, domainlistings.ErrListingNotFound)
	})
	t.Run("too many guests", func(t *testing.T) {
		cmd := createCmd("guest-1", "listing-150", "2031-06-10", "2031-06-12")
		cmd.Guests = 3
		_, err := handler.Handle(ctx, cmd)
		assert.ErrorIs(t, err, domainbooking.ErrInvalidGuests)
	})
	t.Run("client total disagrees", func(t *testing.T) {
		cmd := createCmd("guest-1", "listing-150", "2031-07-01", "2031-07-04")
		claimed := money.Must(30000, "USD")
		cmd.ClientTotal = &claimed
		_, err := handler.Handle(ctx, cmd)
		assert.ErrorIs(t, err, domainbooking.ErrPriceMismatch)
	})
	t.Run("client total agrees", func(t *testing.T) {
		cmd := createCmd("guest-1", "listing-150", "2031-07-01", "2031-07-04")
		claimed := money.Must(45000, "USD")
		cmd.ClientTotal = &claimed
		_, err := handler.Handle(ctx, cmd)
		assert.NoError(t, err)
	})

	assert.Equal(t, 2, h.bookings.Len())
	assert.Equal(t, 2, h.gateway.Created())
}

func TestCreateBookingRequiresCollaborators(t *testing.T) {
	_, err := (&bookingapp.CreateBookingHandler{}).Handle(context.Background(), createCmd("g", "l", "2031-06-01", "2031-06-02"))
	assert.ErrorIs(t, err, bookingapp.ErrGatewayRequired)
}

func TestCreateBookingIdempotencyKeyIsScopedPerGuest(t *testing.T) {
	a := createCmd("guest-a", "listing-100", "2031-06-01", "2031-06-02")
	a.IdempotencyKeyV = " key-1 "
	b := a
	b.GuestID = "guest-b"

	assert.Equal(t, "booking.create:guest-a:key-1", a.IdempotencyKey())
	assert.NotEqual(t, a.IdempotencyKey(), b.IdempotencyKey())

	a.IdempotencyKeyV = ""
	assert.Empty(t, a.IdempotencyKey())
}
