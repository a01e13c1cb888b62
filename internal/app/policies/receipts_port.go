package policies

import (
	"context"
	"time"

	"booking-service/internal/domain/shared/money"
)

type Receipt struct {
	BookingID       string
	ListingTitle    string
	ListingCity     string
	GuestName       string
	GuestEmail      string
	CheckIn         time.Time
	CheckOut        time.Time
	Nights          int
	Guests          int
	NightlyRate     money.Money
	Total           money.Money
	PaymentIntentID string
	Status          string
	IssuedAt        time.Time
}

type ReceiptRenderer interface {
	Render(r Receipt) ([]byte, error)
}

// ReceiptArchiver stores rendered receipts and returns their location.
type ReceiptArchiver interface {
	Archive(ctx context.Context, r Receipt) (string, error)
}
