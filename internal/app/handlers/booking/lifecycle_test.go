package booking_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	bookingapp "booking-service/internal/app/handlers/booking"
	domainbooking "booking-service/internal/domain/booking"
)

func (h *harness) stored(t *testing.T, id string) *domainbooking.Booking {
	t.Helper()
	b, err := h.bookings.ByID(context.Background(), domainbooking.BookingID(id))
	require.NoError(t, err)
	return b
}

func cancel(bus commands.Bus, bookingID, guestID string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](context.Background(), bus,
		bookingapp.CancelBookingCommand{BookingID: bookingID, GuestID: guestID})
}

func confirm(bus commands.Bus, intentID string) (*bookingapp.SettlementResult, error) {
	return commands.Dispatch[bookingapp.ConfirmPaymentCommand, *bookingapp.SettlementResult](context.Background(), bus,
		bookingapp.ConfirmPaymentCommand{IntentID: intentID})
}

func TestCancelPendingBookingVoidsIntentAfterCommit(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	created := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")

	out, err := cancel(bus, created.Booking.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)
	assert.Equal(t, domainbooking.ReasonGuestCancelled, out.CancelReason)
	assert.True(t, h.gateway.IsCancelled(created.Booking.PaymentIntentID))
	assert.Equal(t, domainbooking.StateCancelled, h.stored(t, created.Booking.ID).State)

	names := []string{}
	for _, rec := range h.outbox.Pending() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"booking.requested", "booking.cancelled"}, names)

	// the freed dates can be booked again
	h.create(t, "guest-2", "listing-100", "2031-06-02", "2031-06-04")
}

func TestCancelGuardsThroughBus(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	created := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")

	_, err := cancel(bus, created.Booking.ID, "guest-2")
	assert.ErrorIs(t, err, domainbooking.ErrNotOwner)

	_, err = cancel(bus, "missing", "guest-1")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)

	_, err = cancel(bus, created.Booking.ID, "guest-1")
	require.NoError(t, err)
	_, err = cancel(bus, created.Booking.ID, "guest-1")
	assert.ErrorIs(t, err, domainbooking.ErrAlreadyCancelled)
	assert.Equal(t, 1, h.gateway.Cancelled())
}

func TestCancelConfirmedBookingRespectsCheckIn(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	early := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	late := h.create(t, "guest-1", "listing-150", "2031-06-01", "2031-06-05")
	for _, res := range []*dto.CreateBookingResult{early, late} {
		_, err := confirm(bus, res.Booking.PaymentIntentID)
		require.NoError(t, err)
	}

	out, err := cancel(bus, early.Booking.ID, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", out.Status)
	assert.Equal(t, 0, h.gateway.Cancelled())

	h.now = time.Date(2031, 6, 1, 15, 0, 0, 0, time.UTC)
	_, err = cancel(bus, late.Booking.ID, "guest-1")
	assert.ErrorIs(t, err, domainbooking.ErrCancellationWindowClosed)
	assert.Equal(t, domainbooking.StateConfirmed, h.stored(t, late.Booking.ID).State)
}

func TestConfirmPaymentIsReplaySafe(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	created := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")

	res, err := confirm(bus, created.Booking.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "CONFIRMED", res.Status)

	res, err = confirm(bus, created.Booking.PaymentIntentID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "CONFIRMED", res.Status)

	receipts := h.archiver.archived()
	require.Len(t, receipts, 1)
	assert.Equal(t, created.Booking.ID, receipts[0].BookingID)
	assert.Equal(t, "Old Town Loft", receipts[0].ListingTitle)
	assert.Equal(t, "Jan", receipts[0].GuestName)
	assert.Equal(t, "400.00 USD", receipts[0].Total.String())

	_, err = confirm(bus, "pi_unknown")
	assert.ErrorIs(t, err, domainbooking.ErrBookingNotFound)
}

func TestGatewayCancellationReleasesDates(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	created := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")

	res, err := commands.Dispatch[bookingapp.CancelPaymentIntentCommand, *bookingapp.SettlementResult](context.Background(), bus,
		bookingapp.CancelPaymentIntentCommand{IntentID: created.Booking.PaymentIntentID})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domainbooking.ReasonPaymentCanceled, h.stored(t, created.Booking.ID).CancelReason)

	late, err := confirm(bus, created.Booking.PaymentIntentID)
	require.NoError(t, err)
	assert.False(t, late.Changed)
	assert.Equal(t, "CANCELLED", late.Status)
	assert.Empty(t, h.archiver.archived())
}

func TestExpirePendingSweep(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	stale := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	h.now = testNow.Add(20 * time.Minute)
	fresh := h.create(t, "guest-1", "listing-150", "2031-06-01", "2031-06-05")

	res, err := commands.Dispatch[bookingapp.ExpirePendingBookingsCommand, *bookingapp.SweepResult](context.Background(), bus,
		bookingapp.ExpirePendingBookingsCommand{Now: testNow.Add(31 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	expired := h.stored(t, stale.Booking.ID)
	assert.Equal(t, domainbooking.StateCancelled, expired.State)
	assert.Equal(t, domainbooking.ReasonPaymentTimeout, expired.CancelReason)
	assert.True(t, h.gateway.IsCancelled(stale.Booking.PaymentIntentID))
	assert.Equal(t, domainbooking.StatePending, h.stored(t, fresh.Booking.ID).State)
}

func TestCompleteStaysSweep(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	done := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	ongoing := h.create(t, "guest-1", "listing-150", "2031-06-03", "2031-06-09")
	unpaid := h.create(t, "guest-1", "listing-100", "2031-05-20", "2031-05-22")
	for _, res := range []*dto.CreateBookingResult{done, ongoing} {
		_, err := confirm(bus, res.Booking.PaymentIntentID)
		require.NoError(t, err)
	}

	res, err := commands.Dispatch[bookingapp.CompleteStaysCommand, *bookingapp.SweepResult](context.Background(), bus,
		bookingapp.CompleteStaysCommand{Now: time.Date(2031, 6, 5, 11, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, domainbooking.StateCompleted, h.stored(t, done.Booking.ID).State)
	assert.Equal(t, domainbooking.StateConfirmed, h.stored(t, ongoing.Booking.ID).State)
	assert.Equal(t, domainbooking.StatePending, h.stored(t, unpaid.Booking.ID).State)
}

func TestGuestAndHostBookingQueries(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	first := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	h.now = testNow.Add(time.Minute)
	second := h.create(t, "guest-1", "listing-100", "2031-06-10", "2031-06-12")
	h.create(t, "guest-2", "listing-150", "2031-06-10", "2031-06-12")
	_, err := confirm(bus, first.Booking.PaymentIntentID)
	require.NoError(t, err)

	guestList, err := (&bookingapp.ListGuestBookingsHandler{UoWFactory: h.factory}).Handle(context.Background(),
		bookingapp.ListGuestBookingsQuery{GuestID: "guest-1"})
	require.NoError(t, err)
	require.Len(t, guestList.Items, 2)
	assert.Equal(t, second.Booking.ID, guestList.Items[0].ID)
	assert.Equal(t, "Old Town Loft", guestList.Items[0].Listing.Title)
	require.NotNil(t, guestList.Items[0].Host)
	assert.Equal(t, "Anna", guestList.Items[0].Host.Name)

	hostHandler := &bookingapp.ListHostBookingsHandler{UoWFactory: h.factory}
	all, err := hostHandler.Handle(context.Background(), bookingapp.ListHostBookingsQuery{HostID: "host-1"})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	confirmedOnly, err := hostHandler.Handle(context.Background(), bookingapp.ListHostBookingsQuery{HostID: "host-1", Status: "confirmed"})
	require.NoError(t, err)
	require.Len(t, confirmedOnly.Items, 1)
	assert.Equal(t, first.Booking.ID, confirmedOnly.Items[0].ID)
	assert.Equal(t, "jan@example.com", confirmedOnly.Items[0].Guest.Email)

	other, err := hostHandler.Handle(context.Background(), bookingapp.ListHostBookingsQuery{HostID: "host-2"})
	require.NoError(t, err)
	require.Len(t, other.Items, 1)
	assert.Equal(t, "guest-2", other.Items[0].Guest.ID)
}

func TestBookingReceipt(t *testing.T) {
	h := newHarness(t)
	bus := h.bus()
	created := h.create(t, "guest-1", "listing-100", "2031-06-01", "2031-06-05")
	handler := &bookingapp.GetBookingReceiptHandler{UoWFactory: h.factory, Renderer: stubRenderer{}, Clock: h.clock}
	query := bookingapp.GetBookingReceiptQuery{BookingID: created.Booking.ID, GuestID: "guest-1"}

	_, err := handler.Handle(context.Background(), query)
	assert.ErrorIs(t, err, bookingapp.ErrReceiptUnavailable)

	_, err = confirm(bus, created.Booking.PaymentIntentID)
	require.NoError(t, err)

	_, err = handler.Handle(context.Background(), bookingapp.GetBookingReceiptQuery{BookingID: created.Booking.ID, GuestID: "guest-2"})
	assert.ErrorIs(t, err, domainbooking.ErrNotOwner)

	doc, err := handler.Handle(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, "receipt-"+created.Booking.ID+".pdf", doc.FileName)
	assert.Equal(t, []byte("%PDF-"+created.Booking.ID), doc.Content)
}
