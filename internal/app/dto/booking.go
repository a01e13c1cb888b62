package dto

import (
	"time"

	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
}

type ListingSummary struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	City         string   `json:"city"`
	Country      string   `json:"country"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	NightlyRate  MoneyDTO `json:"nightly_rate"`
}

type Booking struct {
	ID              string    `json:"id"`
	ListingID       string    `json:"listing_id"`
	HostID          string    `json:"host_id"`
	GuestID         string    `json:"guest_id"`
	CheckIn         string    `json:"check_in"`
	CheckOut        string    `json:"check_out"`
	Nights          int       `json:"nights"`
	Guests          int       `json:"guests"`
	NightlyRate     MoneyDTO  `json:"nightly_rate"`
	TotalPrice      MoneyDTO  `json:"total_price"`
	Status          string    `json:"status"`
	PaymentIntentID string    `json:"payment_intent_id,omitempty"`
	CancelReason    string    `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateBookingResult struct {
	Booking      Booking `json:"booking"`
	ClientSecret string  `json:"client_secret"`
}

type GuestBookingSummary struct {
	Booking
	Listing ListingSummary `json:"listing"`
	Host    *PersonSummary `json:"host,omitempty"`
}

type GuestBookingCollection struct {
	Items []GuestBookingSummary `json:"items"`
}

type HostBookingSummary struct {
	Booking
	Listing ListingSummary `json:"listing"`
	Guest   PersonSummary  `json:"guest"`
}

type HostBookingCollection struct {
	Items []HostBookingSummary `json:"items"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
		Display:  value.String(),
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	if b == nil {
		return Booking{}
	}
	return Booking{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		HostID:          string(b.HostID),
		GuestID:         b.GuestID,
		CheckIn:         daterange.FormatDate(b.Range.CheckIn),
		CheckOut:        daterange.FormatDate(b.Range.CheckOut),
		Nights:          b.Range.Nights(),
		Guests:          b.Guests,
		NightlyRate:     MapMoney(b.NightlyRate),
		TotalPrice:      MapMoney(b.Total),
		Status:          string(b.State),
		PaymentIntentID: b.PaymentIntentID,
		CancelReason:    b.CancelReason,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

// MapListingSummary falls back to the bare id when the catalog entry is gone.
func MapListingSummary(id domainlistings.ListingID, listing *domainlistings.Listing) ListingSummary {
	if listing == nil {
		return ListingSummary{ID: string(id)}
	}
	return ListingSummary{
		ID:           string(listing.ID),
		Title:        listing.Title,
		City:         listing.City,
		Country:      listing.Country,
		ThumbnailURL: listing.ThumbnailURL,
		NightlyRate:  MapMoney(listing.NightlyRate),
	}
}

func MapGuestBookingSummary(b *domainbooking.Booking, listing *domainlistings.Listing, host *PersonSummary) GuestBookingSummary {
	return GuestBookingSummary{
		Booking: MapBooking(b),
		Listing: MapListingSummary(b.ListingID, listing),
		Host:    host,
	}
}

func MapHostBookingSummary(b *domainbooking.Booking, listing *domainlistings.Listing, guest PersonSummary) HostBookingSummary {
	return HostBookingSummary{
		Booking: MapBooking(b),
		Listing: MapListingSummary(b.ListingID, listing),
		Guest:   guest,
	}
}
