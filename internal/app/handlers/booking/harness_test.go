package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	bookingapp "booking-service/internal/app/handlers/booking"
	"booking-service/internal/app/middleware"
	"booking-service/internal/app/policies"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/money"
	domainuser "booking-service/internal/domain/user"
	"booking-service/internal/infra/payments"
	"booking-service/internal/infra/storage/memory"
)

var testNow = time.Date(2031, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	factory  memory.Factory
	bookings *memory.BookingRepository
	outbox   *memory.Outbox
	gateway  *payments.FakeGateway
	locker   *memory.KeyedLocker
	archiver *recordingArchiver
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		bookings: memory.NewBookingRepository(),
		outbox:   memory.NewOutbox(),
		gateway:  payments.NewFakeGateway(),
		locker:   memory.NewKeyedLocker(),
		archiver: &recordingArchiver{},
		now:      testNow,
	}
	listings := memory.NewListingRepository()
	directory := memory.NewDirectory()
	h.factory = memory.Factory{ListingsRepo: listings, BookingRepo: h.bookings, Directory: directory, OutboxStore: h.outbox}

	ctx := context.Background()
	for _, l := range []domainlistings.Listing{
		{ID: "listing-100", Host: "host-1", Title: "Old Town Loft", City: "Prague", NightlyRate: money.Must(10000, "USD"), GuestsLimit: 4},
		{ID: "listing-150", Host: "host-2", Title: "Tatra Cabin", City: "Zakopane", NightlyRate: money.Must(15000, "USD"), GuestsLimit: 2},
	} {
		l := l
		require.NoError(t, listings.Save(ctx, &l))
	}
	require.NoError(t, directory.Save(ctx, domainuser.Profile{ID: "host-1", Name: "Anna", Email: "anna@example.com"}))
	require.NoError(t, directory.Save(ctx, domainuser.Profile{ID: "guest-1", Name: "Jan", Email: "jan@example.com"}))
	return h
}

func (h *harness) clock() time.Time { return h.now }

func (h *harness) createHandler(gateway policies.PaymentGateway) *bookingapp.CreateBookingHandler {
	if gateway == nil {
		gateway = h.gateway
	}
	return &bookingapp.CreateBookingHandler{
		UoWFactory: h.factory,
		Gateway:    gateway,
		Locker:     h.locker,
		Clock:      h.clock,
	}
}

// bus wires the lifecycle handlers behind the transaction middleware the way the service does.
func (h *harness) bus() commands.Bus {
	bus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.CreateBookingResult](bus, h.createHandler(nil))
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.Booking](bus, &bookingapp.CancelBookingHandler{Gateway: h.gateway, Clock: h.clock})
	commands.RegisterHandler[bookingapp.ConfirmPaymentCommand, *bookingapp.SettlementResult](bus, &bookingapp.ConfirmPaymentHandler{Archiver: h.archiver, Clock: h.clock})
	commands.RegisterHandler[bookingapp.CancelPaymentIntentCommand, *bookingapp.SettlementResult](bus, &bookingapp.CancelPaymentIntentHandler{Clock: h.clock})
	commands.RegisterHandler[bookingapp.ExpirePendingBookingsCommand, *bookingapp.SweepResult](bus, &bookingapp.ExpirePendingBookingsHandler{UoWFactory: h.factory, Gateway: h.gateway, TTL: 30 * time.Minute})
	commands.RegisterHandler[bookingapp.CompleteStaysCommand, *bookingapp.SweepResult](bus, &bookingapp.CompleteStaysHandler{UoWFactory: h.factory})
	return middleware.ChainCommands(bus, middleware.Transaction(h.factory, nil))
}

func (h *harness) create(t *testing.T, guestID, listingID, in, out string) *dto.CreateBookingResult {
	t.Helper()
	res, err := h.createHandler(nil).Handle(context.Background(), createCmd(guestID, listingID, in, out))
	require.NoError(t, err)
	return res
}

func createCmd(guestID, listingID, in, out string) bookingapp.CreateBookingCommand {
	return bookingapp.CreateBookingCommand{
		ListingID: listingID,
		GuestID:   guestID,
		CheckIn:   day(in),
		CheckOut:  day(out),
		Guests:    1,
	}
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type recordingArchiver struct {
	mu       sync.Mutex
	receipts []policies.Receipt
}

func (a *recordingArchiver) Archive(ctx context.Context, r policies.Receipt) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.receipts = append(a.receipts, r)
	return "receipts/" + r.BookingID + ".pdf", nil
}

func (a *recordingArchiver) archived() []policies.Receipt {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]policies.Receipt(nil), a.receipts...)
}

type stubRenderer struct{}

func (stubRenderer) Render(r policies.Receipt) ([]byte, error) {
	return []byte("%PDF-" + r.BookingID), nil
}
