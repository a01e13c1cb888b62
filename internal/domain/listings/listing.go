package listings

import (
	"context"
	"errors"
	"strings"

	"booking-service/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: not found")
	ErrGuestsLimit     = errors.New("listings: guests limit must be at least 1")
	ErrNightlyRate     = errors.New("listings: nightly rate must be positive")
	ErrTitleRequired   = errors.New("listings: title is required")
)

type ListingID string
type HostID string

// Listing is the read-only projection of a catalog entry needed to price and guard bookings.
type Listing struct {
	ID           ListingID
	Host         HostID
	Title        string
	City         string
	Country      string
	ThumbnailURL string
	NightlyRate  money.Money
	GuestsLimit  int
}

// Repository is the listing catalog lookup. Implementations return ErrListingNotFound for unknown ids.
type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
}

type CreateListingParams struct {
	ID           ListingID
	Host         HostID
	Title        string
	City         string
	Country      string
	ThumbnailURL string
	NightlyRate  money.Money
	GuestsLimit  int
}

// NewListing validates catalog data before it is seeded into a store.
func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("listings: id is required")
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, errors.New("listings: host is required")
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if params.GuestsLimit < 1 {
		return nil, ErrGuestsLimit
	}
	if params.NightlyRate.Amount <= 0 {
		return nil, ErrNightlyRate
	}
	if _, err := money.New(params.NightlyRate.Amount, params.NightlyRate.Currency); err != nil {
		return nil, err
	}
	return &Listing{
		ID:           params.ID,
		Host:         params.Host,
		Title:        strings.TrimSpace(params.Title),
		City:         strings.TrimSpace(params.City),
		Country:      strings.TrimSpace(params.Country),
		ThumbnailURL: strings.TrimSpace(params.ThumbnailURL),
		NightlyRate:  money.Must(params.NightlyRate.Amount, params.NightlyRate.Currency),
		GuestsLimit:  params.GuestsLimit,
	}, nil
}

// AcceptsGuests reports whether the party size fits the listing.
func (l *Listing) AcceptsGuests(n int) bool {
	return n >= 1 && n <= l.GuestsLimit
}
