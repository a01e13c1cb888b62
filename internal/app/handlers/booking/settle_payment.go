package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"booking-service/internal/app/commands"
	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/outbox"
	"booking-service/internal/app/policies"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
)

const (
	confirmPaymentKey      = "payments.confirm"
	cancelPaymentIntentKey = "payments.intent_canceled"
)

// ConfirmPaymentCommand is raised by the gateway once the intent was charged.
type ConfirmPaymentCommand struct {
	IntentID string `validate:"required"`
}

func (c ConfirmPaymentCommand) Key() string { return confirmPaymentKey }

// CancelPaymentIntentCommand is raised by the gateway when the intent was cancelled on its side.
type CancelPaymentIntentCommand struct {
	IntentID string `validate:"required"`
}

func (c CancelPaymentIntentCommand) Key() string { return cancelPaymentIntentKey }

// SettlementResult tells the caller whether the event changed anything.
// Gateways redeliver events, so replays are reported as unchanged rather than failed.
type SettlementResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Changed   bool   `json:"changed"`
}

type ConfirmPaymentHandler struct {
	Encoder  outbox.EventEncoder
	Archiver policies.ReceiptArchiver
	Logger   *slog.Logger
	Clock    func() time.Time
}

func (h *ConfirmPaymentHandler) Handle(ctx context.Context, cmd ConfirmPaymentCommand) (*SettlementResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	logger := h.logger()
	b, err := unit.Bookings().ByPaymentIntent(ctx, strings.TrimSpace(cmd.IntentID))
	if err != nil {
		return nil, err
	}
	switch b.State {
	case domainbooking.StateConfirmed, domainbooking.StateCompleted:
		return &SettlementResult{BookingID: string(b.ID), Status: string(b.State)}, nil
	case domainbooking.StateCancelled:
		logger.Warn("payment settled for cancelled booking", "booking_id", b.ID, "intent_id", cmd.IntentID, "reason", b.CancelReason)
		return &SettlementResult{BookingID: string(b.ID), Status: string(b.State)}, nil
	}

	now := handlersupport.Now(h.Clock)
	if err := b.Confirm(cmd.IntentID, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().UpdateStatus(ctx, b, domainbooking.StatePending); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain()); err != nil {
		return nil, err
	}

	if h.Archiver != nil {
		receipt, err := buildReceipt(ctx, unit, b, now, logger)
		if err != nil {
			logger.Warn("receipt not prepared", "booking_id", b.ID, "error", err)
		} else {
			uow.OnCommit(ctx, func(ctx context.Context) {
				location, err := h.Archiver.Archive(context.WithoutCancel(ctx), receipt)
				if err != nil {
					logger.Error("receipt archive failed", "booking_id", receipt.BookingID, "error", err)
					return
				}
				logger.Info("receipt archived", "booking_id", receipt.BookingID, "location", location)
			})
		}
	}
	logger.Info("booking confirmed", "booking_id", b.ID, "intent_id", cmd.IntentID)
	return &SettlementResult{BookingID: string(b.ID), Status: string(b.State), Changed: true}, nil
}

func (h *ConfirmPaymentHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type CancelPaymentIntentHandler struct {
	Encoder outbox.EventEncoder
	Logger  *slog.Logger
	Clock   func() time.Time
}

func (h *CancelPaymentIntentHandler) Handle(ctx context.Context, cmd CancelPaymentIntentCommand) (*SettlementResult, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	b, err := unit.Bookings().ByPaymentIntent(ctx, strings.TrimSpace(cmd.IntentID))
	if err != nil {
		return nil, err
	}
	if b.State != domainbooking.StatePending {
		return &SettlementResult{BookingID: string(b.ID), Status: string(b.State)}, nil
	}
	if err := b.Cancel(domainbooking.GatewayActor(), domainbooking.ReasonPaymentCanceled, handlersupport.Now(h.Clock)); err != nil {
		return nil, err
	}
	if err := unit.Bookings().UpdateStatus(ctx, b, domainbooking.StatePending); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), h.Encoder, b.Drain()); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking cancelled by gateway", "booking_id", b.ID, "intent_id", cmd.IntentID)
	}
	return &SettlementResult{BookingID: string(b.ID), Status: string(b.State), Changed: true}, nil
}

var _ commands.Handler[ConfirmPaymentCommand, *SettlementResult] = (*ConfirmPaymentHandler)(nil)
var _ commands.Handler[CancelPaymentIntentCommand, *SettlementResult] = (*CancelPaymentIntentHandler)(nil)
