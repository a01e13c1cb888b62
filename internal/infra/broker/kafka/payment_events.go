package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"booking-service/internal/app/commands"
	domainbooking "booking-service/internal/domain/booking"
	"booking-service/internal/infra/payments"
)

// PaymentEventsHandler turns payment CloudEvents into booking settlement commands.
type PaymentEventsHandler struct {
	Commands commands.Bus
	Inbox    payments.Inbox
	Logger   *slog.Logger
}

func (h PaymentEventsHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	settlement, err := payments.ParseCloudEvent(msg.Value)
	switch {
	case errors.Is(err, payments.ErrUnsupportedEvent):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	res, err := payments.ApplyOnce(ctx, h.Commands, h.Inbox, settlement)
	if errors.Is(err, payments.ErrDuplicateEvent) {
		if h.Logger != nil {
			h.Logger.Debug("duplicate payment event skipped", "event_id", settlement.EventID, "intent_id", settlement.IntentID)
		}
		return nil
	}
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) || errors.Is(err, domainbooking.ErrPaymentIntentMismatch) {
			return fmt.Errorf("%w: %w", ErrPermanent, err)
		}
		return err
	}
	if h.Logger != nil {
		h.Logger.Info("payment event applied", "intent_id", settlement.IntentID, "outcome", settlement.Outcome, "booking_id", res.BookingID, "changed", res.Changed)
	}
	return nil
}

var _ MessageHandler = PaymentEventsHandler{}
