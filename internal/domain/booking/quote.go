package booking

import (
	"errors"

	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

var (
	ErrPriceMismatch = errors.New("booking: total price does not match nights x nightly rate")
	ErrInvalidRate   = errors.New("booking: nightly rate must be positive")
)

// Quote is the server-side price of a stay. Bookings never trust a client total.
type Quote struct {
	Nights      int
	NightlyRate money.Money
	Total       money.Money
}

func QuoteStay(rate money.Money, dr daterange.DateRange) (Quote, error) {
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	if rate.Amount <= 0 {
		return Quote{}, ErrInvalidRate
	}
	nights := dr.Nights()
	return Quote{
		Nights:      nights,
		NightlyRate: rate,
		Total:       rate.Multiply(int64(nights)),
	}, nil
}

// Verify rejects a client supplied total that disagrees with the quote. A nil claim is accepted.
func (q Quote) Verify(claimed *money.Money) error {
	if claimed == nil {
		return nil
	}
	if claimed.Currency == "" {
		if claimed.Amount != q.Total.Amount {
			return ErrPriceMismatch
		}
		return nil
	}
	if !q.Total.Equal(*claimed) {
		return ErrPriceMismatch
	}
	return nil
}
