package support

import (
	"context"
	"log/slog"
	"time"

	"booking-service/internal/app/policies"
)

const defaultVoidTimeout = 10 * time.Second

// IntentVoider cancels payment intents that no booking will ever settle.
// It detaches from the caller's context so a client disconnect cannot leave an intent dangling.
type IntentVoider struct {
	Gateway policies.PaymentGateway
	Logger  *slog.Logger
	Timeout time.Duration
}

func (v IntentVoider) Void(ctx context.Context, intentID, bookingID, reason string) {
	if v.Gateway == nil || intentID == "" {
		return
	}
	timeout := v.Timeout
	if timeout <= 0 {
		timeout = defaultVoidTimeout
	}
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := v.Gateway.CancelIntent(voidCtx, intentID); err != nil {
		logger.Error("payment intent void failed", "intent_id", intentID, "booking_id", bookingID, "reason", reason, "error", err)
		return
	}
	logger.Info("payment intent voided", "intent_id", intentID, "booking_id", bookingID, "reason", reason)
}
