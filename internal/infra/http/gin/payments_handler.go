package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"booking-service/internal/app/commands"
	domainbooking "booking-service/internal/domain/booking"
	"booking-service/internal/infra/payments"
)

const maxWebhookBody = 64 << 10

// PaymentsHandler receives Stripe webhooks. Anything that is not a verified settlement for a
// known intent is acknowledged so Stripe stops retrying; failures of our own return 5xx.
type PaymentsHandler struct {
	Commands      commands.Bus
	WebhookSecret string
	Inbox         payments.Inbox
	Logger        *slog.Logger
}

func (h PaymentsHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	settlement, err := payments.ParseStripeWebhook(payload, c.GetHeader("Stripe-Signature"), h.WebhookSecret)
	switch {
	case errors.Is(err, payments.ErrUnsupportedEvent):
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	case err != nil:
		h.logger().Warn("webhook rejected", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}
	result, err := payments.ApplyOnce(c.Request.Context(), h.Commands, h.Inbox, settlement)
	if err != nil {
		if errors.Is(err, payments.ErrDuplicateEvent) {
			c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
			return
		}
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			h.logger().Warn("webhook for unknown intent", "intent_id", settlement.IntentID)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		respondError(c, h.Logger, err)
		return
	}
	h.logger().Info("payment settlement applied",
		"intent_id", settlement.IntentID,
		"outcome", settlement.Outcome,
		"booking_id", result.BookingID,
		"changed", result.Changed,
	)
	c.JSON(http.StatusOK, gin.H{"received": true, "booking_id": result.BookingID, "status": result.Status})
}

func (h PaymentsHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
