package policies

import (
	"context"
	"errors"

	"booking-service/internal/domain/shared/money"
)

// ErrGateway wraps every failure reported by the payment provider.
var ErrGateway = errors.New("payments: gateway error")

type IntentRequest struct {
	Amount         money.Money
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is an authorized-but-unsettled charge. ClientToken lets the client confirm it.
type Intent struct {
	ID          string
	ClientToken string
}

// PaymentGateway creates and voids payment intents. Implementations wrap failures with ErrGateway.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}
