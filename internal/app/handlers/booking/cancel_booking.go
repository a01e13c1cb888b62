package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"booking-service/internal/app/commands"
	"booking-service/internal/app/dto"
	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/outbox"
	"booking-service/internal/app/policies"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
)

const cancelBookingKey = "booking.cancel"

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	GuestID   string `validate:"required"`
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) RequiresPrincipal() bool { return true }

// CancelBookingHandler runs inside the unit opened by the transaction middleware.
type CancelBookingHandler struct {
	Gateway     policies.PaymentGateway
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger
	Clock       func() time.Time
	VoidTimeout time.Duration
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return nil, err
	}
	previous := b.State
	if err := b.Cancel(domainbooking.GuestActor(cmd.GuestID), domainbooking.ReasonGuestCancelled, handlersupport.Now(h.Clock)); err != nil {
		return nil, err
	}
	if err := unit.Bookings().UpdateStatus(ctx, b, previous); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain()); err != nil {
		return nil, err
	}

	if previous == domainbooking.StatePending {
		intentID, bookingID := b.PaymentIntentID, string(b.ID)
		uow.OnCommit(ctx, func(ctx context.Context) {
			handlersupport.IntentVoider{Gateway: h.Gateway, Logger: h.Logger, Timeout: h.VoidTimeout}.
				Void(ctx, intentID, bookingID, domainbooking.ReasonGuestCancelled)
		})
	}
	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", b.ID, "guest_id", cmd.GuestID, "previous", previous)
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[CancelBookingCommand, *dto.Booking] = (*CancelBookingHandler)(nil)
