package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"booking-service/internal/app/commands"
	bookingapp "booking-service/internal/app/handlers/booking"
)

type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeCanceled  Outcome = "canceled"
)

// Settlement is a gateway notification about one payment intent.
type Settlement struct {
	EventID  string
	IntentID string
	Outcome  Outcome
}

var (
	ErrUnsupportedEvent = errors.New("payments: unsupported event type")
	ErrMalformedEvent   = errors.New("payments: malformed event")
	ErrDuplicateEvent   = errors.New("payments: event already processed")
)

// Inbox remembers gateway events that were handed to the booking commands.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// OutcomeFor maps Stripe ("payment_intent.succeeded") and internal CloudEvents
// ("payment.intent.succeeded.v1") type names to an outcome.
func OutcomeFor(eventType string) (Outcome, bool) {
	t := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(eventType)), ".v1")
	t = strings.ReplaceAll(t, "payment.intent.", "payment_intent.")
	switch t {
	case "payment_intent.succeeded":
		return OutcomeSucceeded, true
	case "payment_intent.canceled", "payment_intent.cancelled":
		return OutcomeCanceled, true
	default:
		return "", false
	}
}

// Apply dispatches the booking command matching the settlement outcome.
func Apply(ctx context.Context, bus commands.Bus, s Settlement) (*bookingapp.SettlementResult, error) {
	if strings.TrimSpace(s.IntentID) == "" {
		return nil, ErrMalformedEvent
	}
	switch s.Outcome {
	case OutcomeSucceeded:
		return commands.Dispatch[bookingapp.ConfirmPaymentCommand, *bookingapp.SettlementResult](ctx, bus, bookingapp.ConfirmPaymentCommand{IntentID: s.IntentID})
	case OutcomeCanceled:
		return commands.Dispatch[bookingapp.CancelPaymentIntentCommand, *bookingapp.SettlementResult](ctx, bus, bookingapp.CancelPaymentIntentCommand{IntentID: s.IntentID})
	default:
		return nil, ErrUnsupportedEvent
	}
}

// ApplyOnce is Apply guarded by the inbox. A redelivered event returns ErrDuplicateEvent;
// a failed dispatch is forgotten so the next delivery retries it.
func ApplyOnce(ctx context.Context, bus commands.Bus, inbox Inbox, s Settlement) (*bookingapp.SettlementResult, error) {
	if inbox == nil || s.EventID == "" {
		return Apply(ctx, bus, s)
	}
	seen, err := inbox.Seen(ctx, s.EventID)
	if err != nil {
		return nil, fmt.Errorf("payments: inbox: %w", err)
	}
	if seen {
		return nil, ErrDuplicateEvent
	}
	res, err := Apply(ctx, bus, s)
	if err != nil {
		if ferr := inbox.Forget(context.WithoutCancel(ctx), s.EventID); ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, err
	}
	return res, nil
}

// ParseStripeWebhook verifies the Stripe-Signature header and extracts the settlement.
// Event types the service does not act on return ErrUnsupportedEvent.
func ParseStripeWebhook(payload []byte, signature, secret string) (Settlement, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Settlement{}, fmt.Errorf("payments: verify webhook: %w", err)
	}
	outcome, ok := OutcomeFor(string(event.Type))
	if !ok {
		return Settlement{}, ErrUnsupportedEvent
	}
	if event.Data == nil {
		return Settlement{}, ErrMalformedEvent
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil || pi.ID == "" {
		return Settlement{}, ErrMalformedEvent
	}
	return Settlement{EventID: event.ID, IntentID: pi.ID, Outcome: outcome}, nil
}

type cloudEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentIntentID string `json:"payment_intent_id"`
		IntentID        string `json:"intent_id"`
		ID              string `json:"id"`
	} `json:"data"`
}

// ParseCloudEvent decodes a payment event published on the payments topic.
func ParseCloudEvent(payload []byte) (Settlement, error) {
	var evt cloudEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return Settlement{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	outcome, ok := OutcomeFor(evt.Type)
	if !ok {
		return Settlement{}, ErrUnsupportedEvent
	}
	id := evt.Data.PaymentIntentID
	if id == "" {
		id = evt.Data.IntentID
	}
	if id == "" {
		id = evt.Data.ID
	}
	if id == "" {
		return Settlement{}, ErrMalformedEvent
	}
	return Settlement{EventID: evt.ID, IntentID: id, Outcome: outcome}, nil
}
