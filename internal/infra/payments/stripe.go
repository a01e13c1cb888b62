package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"booking-service/internal/app/policies"
)

// StripeGateway issues card payment intents through the Stripe API.
type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req policies.IntentRequest) (policies.Intent, error) {
	const op = "payments.stripe.CreateIntent"
	if req.Amount.Amount <= 0 {
		return policies.Intent{}, fmt.Errorf("%s: %w: non-positive amount", op, policies.ErrGateway)
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount.Amount),
		Currency: stripe.String(strings.ToLower(req.Amount.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return policies.Intent{}, fmt.Errorf("%s: %w: %w", op, policies.ErrGateway, err)
	}
	return policies.Intent{ID: pi.ID, ClientToken: pi.ClientSecret}, nil
}

// CancelIntent voids an intent. Intents that already reached a final state count as voided.
func (g *StripeGateway) CancelIntent(ctx context.Context, intentID string) error {
	const op = "payments.stripe.CancelIntent"
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := g.api.PaymentIntents.Cancel(intentID, params)
	if err == nil {
		return nil
	}
	var se *stripe.Error
	if errors.As(err, &se) && string(se.Code) == "payment_intent_unexpected_state" {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, policies.ErrGateway, err)
}

var _ policies.PaymentGateway = (*StripeGateway)(nil)
