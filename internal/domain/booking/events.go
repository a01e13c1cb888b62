package booking

import (
	"time"

	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/money"
)

type BookingRequested struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	GuestID   string             `json:"guest_id"`
	CheckIn   time.Time          `json:"check_in"`
	CheckOut  time.Time          `json:"check_out"`
	Guests    int                `json:"guests"`
	Total     money.Money        `json:"total"`
	At        time.Time          `json:"at"`
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID       BookingID          `json:"booking_id"`
	ListingID       listings.ListingID `json:"listing_id"`
	PaymentIntentID string             `json:"payment_intent_id"`
	Total           money.Money        `json:"total"`
	At              time.Time          `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID     BookingID          `json:"booking_id"`
	ListingID     listings.ListingID `json:"listing_id"`
	PreviousState BookingState       `json:"previous_state"`
	By            ActorKind          `json:"by"`
	Reason        string             `json:"reason"`
	At            time.Time          `json:"at"`
}

func (e BookingCancelled) EventName() string     { return "booking.cancelled" }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type BookingCompleted struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	At        time.Time          `json:"at"`
}

func (e BookingCompleted) EventName() string     { return "booking.completed" }
func (e BookingCompleted) AggregateID() string   { return string(e.BookingID) }
func (e BookingCompleted) OccurredAt() time.Time { return e.At }
