package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/middleware"
	"booking-service/internal/app/outbox"
	"booking-service/internal/app/policies"
	"booking-service/internal/app/uow"
	"booking-service/internal/domain/availability"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

const createBookingKey = "booking.create"

type CreateBookingCommand struct {
	ListingID   string    `validate:"required"`
	GuestID     string    `validate:"required"`
	CheckIn     time.Time `validate:"required"`
	CheckOut    time.Time `validate:"required"`
	Guests      int       `validate:"gte=1"`
	ClientTotal *money.Money
	// IdempotencyKeyV is the raw client header; it is scoped per guest before use.
	IdempotencyKeyV string `validate:"max=128"`
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string {
	key := strings.TrimSpace(c.IdempotencyKeyV)
	if key == "" {
		return ""
	}
	return createBookingKey + ":" + c.GuestID + ":" + key
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.CreateBookingResult{} }

func (c CreateBookingCommand) ManagesUnit() bool { return true }

func (c CreateBookingCommand) RequiresPrincipal() bool { return true }

// CreateBookingHandler reserves dates and issues the payment intent that funds them.
type CreateBookingHandler struct {
	UoWFactory  uow.UoWFactory
	Gateway     policies.PaymentGateway
	Locker      policies.ListingLocker
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger
	Clock       func() time.Time
	IDGenerator func() string
	VoidTimeout time.Duration
}

var (
	ErrGatewayRequired = errors.New("booking: payment gateway required")
	ErrLockerRequired  = errors.New("booking: listing locker required")
)

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.CreateBookingResult, error) {
	if h.Gateway == nil {
		return nil, ErrGatewayRequired
	}
	if h.Locker == nil {
		return nil, ErrLockerRequired
	}
	now := handlersupport.Now(h.Clock)

	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, err
	}
	if err := domainbooking.ValidateDateRange(dr, now); err != nil {
		return nil, err
	}

	listing, err := h.loadListing(ctx, domainlistings.ListingID(strings.TrimSpace(cmd.ListingID)))
	if err != nil {
		return nil, err
	}
	quote, err := domainbooking.QuoteStay(listing.NightlyRate, dr)
	if err != nil {
		return nil, err
	}
	if err := quote.Verify(cmd.ClientTotal); err != nil {
		return nil, err
	}
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(h.newID()),
		Listing:   listing,
		GuestID:   cmd.GuestID,
		Range:     dr,
		Guests:    cmd.Guests,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	release, err := h.Locker.Lock(ctx, string(listing.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	if err := h.ensureAvailable(ctx, listing.ID, dr); err != nil {
		return nil, err
	}

	intent, err := h.Gateway.CreateIntent(ctx, policies.IntentRequest{
		Amount: b.Total,
		Metadata: map[string]string{
			"booking_id": string(b.ID),
			"listing_id": string(b.ListingID),
			"user_id":    b.GuestID,
			"check_in":   daterange.FormatDate(dr.CheckIn),
			"check_out":  daterange.FormatDate(dr.CheckOut),
		},
		IdempotencyKey: string(b.ID),
	})
	if err != nil {
		if !errors.Is(err, policies.ErrGateway) {
			err = fmt.Errorf("%w: %w", policies.ErrGateway, err)
		}
		h.logger().Warn("payment intent creation failed", "listing_id", listing.ID, "guest_id", b.GuestID, "error", err)
		return nil, err
	}
	if err := b.AttachPaymentIntent(intent.ID); err != nil {
		h.voider().Void(ctx, intent.ID, string(b.ID), "attach_failed")
		return nil, err
	}

	if err := h.persist(ctx, b); err != nil {
		h.voider().Void(ctx, intent.ID, string(b.ID), "persist_failed")
		if errors.Is(err, domainbooking.ErrConflict) {
			h.logger().Info("booking lost availability race", "listing_id", listing.ID, "range", dr.String())
			return nil, fmt.Errorf("%w: %w", domainbooking.ErrUnavailable, domainbooking.ErrConflict)
		}
		return nil, err
	}

	h.logger().Info("booking created",
		"booking_id", b.ID,
		"listing_id", b.ListingID,
		"guest_id", b.GuestID,
		"range", dr.String(),
		"total", b.Total.String(),
	)
	return &dto.CreateBookingResult{
		Booking:      dto.MapBooking(b),
		ClientSecret: intent.ClientToken,
	}, nil
}

func (h *CreateBookingHandler) loadListing(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Listings().ByID(execCtx, id)
}

func (h *CreateBookingHandler) ensureAvailable(ctx context.Context, listingID domainlistings.ListingID, dr daterange.DateRange) error {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	ok, err := availability.NewChecker(unit.Bookings()).IsAvailable(execCtx, listingID, dr)
	if err != nil {
		return err
	}
	if !ok {
		return domainbooking.ErrUnavailable
	}
	return nil
}

// persist inserts the booking and its events in one unit. Insert is the final arbiter of availability.
func (h *CreateBookingHandler) persist(ctx context.Context, b *domainbooking.Booking) error {
	return handlersupport.RunInUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Insert(ctx, b); err != nil {
			return err
		}
		return outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain())
	})
}

func (h *CreateBookingHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

func (h *CreateBookingHandler) voider() handlersupport.IntentVoider {
	return handlersupport.IntentVoider{Gateway: h.Gateway, Logger: h.Logger, Timeout: h.VoidTimeout}
}

func (h *CreateBookingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ commands.Handler[CreateBookingCommand, *dto.CreateBookingResult] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
var _ middleware.UnitManaged = CreateBookingCommand{}
