package money

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidAmount    = errors.New("money: invalid amount")
)

// minorDigits is the number of fractional digits for supported currencies.
const minorDigits = 2

// Money keeps amounts in integer minor units (cents) to avoid floating point issues.
type Money struct {
	Amount   int64  `json:"amount" bson:"amount"`
	Currency string `json:"currency" bson:"currency"`
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ParseMajor converts a decimal string in major units ("450", "450.5", "450.50") into Money.
func ParseMajor(value string, currency string) (Money, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(value), ".")
	if whole == "" && frac == "" || len(frac) > minorDigits || !digitsOnly(whole) || !digitsOnly(frac) {
		return Money{}, ErrInvalidAmount
	}
	var major, minor int64
	if whole != "" {
		v, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || v > maxMajor {
			return Money{}, ErrInvalidAmount
		}
		major = v
	}
	if frac != "" {
		frac += strings.Repeat("0", minorDigits-len(frac))
		v, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return Money{}, ErrInvalidAmount
		}
		minor = v
	}
	return New(major*100+minor, currency)
}

// maxMajor keeps major*100+minor within int64.
const maxMajor = (math.MaxInt64 - 99) / 100

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Equal compares amount and currency.
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && strings.EqualFold(m.Currency, other.Currency)
}

// String renders the amount in major units, e.g. "450.00 USD".
func (m Money) String() string {
	return m.Major() + " " + m.Currency
}

// Major renders the amount in major units without currency.
func (m Money) Major() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	frac := strconv.FormatInt(amount%100, 10)
	if len(frac) < minorDigits {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(amount/100, 10) + "." + frac
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
