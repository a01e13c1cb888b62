package booking

import (
	"errors"
	"strings"
	"time"

	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/events"
	"booking-service/internal/domain/shared/money"
)

var (
	ErrInvalidGuests            = errors.New("booking: guests count out of bounds")
	ErrInvalidState             = errors.New("booking: invalid state transition")
	ErrBookingNotFound          = errors.New("booking: not found")
	ErrAlreadyCancelled         = errors.New("booking: already cancelled")
	ErrNotOwner                 = errors.New("booking: not owned by caller")
	ErrCancellationWindowClosed = errors.New("booking: confirmed stay can no longer be cancelled")
	ErrPaymentIntentRequired    = errors.New("booking: payment intent required")
	ErrPaymentIntentMismatch    = errors.New("booking: payment intent mismatch")
	ErrStayNotFinished          = errors.New("booking: stay has not finished")
	ErrNotExpired               = errors.New("booking: pending window has not elapsed")
	ErrUnavailable              = errors.New("booking: listing unavailable for requested dates")
	ErrConflict                 = errors.New("booking: conflicting booking exists")
	ErrConcurrentUpdate         = errors.New("booking: concurrent update detected")
)

const (
	ReasonGuestCancelled  = "guest_cancelled"
	ReasonPaymentTimeout  = "payment_timeout"
	ReasonPaymentCanceled = "payment_canceled"
)

type BookingID string

type Booking struct {
	ID              BookingID
	ListingID       listings.ListingID
	HostID          listings.HostID
	GuestID         string
	Range           daterange.DateRange
	Guests          int
	NightlyRate     money.Money
	Total           money.Money
	State           BookingState
	PaymentIntentID string
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type CreateParams struct {
	ID        BookingID
	Listing   *listings.Listing
	GuestID   string
	Range     daterange.DateRange
	Guests    int
	CreatedAt time.Time
}

// NewBooking prices the stay against the listing and returns a PENDING booking.
func NewBooking(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if strings.TrimSpace(params.GuestID) == "" {
		return nil, errors.New("booking: guest id required")
	}
	if params.Listing == nil {
		return nil, listings.ErrListingNotFound
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !params.Listing.AcceptsGuests(params.Guests) {
		return nil, ErrInvalidGuests
	}
	quote, err := QuoteStay(params.Listing.NightlyRate, params.Range)
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:          params.ID,
		ListingID:   params.Listing.ID,
		HostID:      params.Listing.Host,
		GuestID:     params.GuestID,
		Range:       params.Range,
		Guests:      params.Guests,
		NightlyRate: quote.NightlyRate,
		Total:       quote.Total,
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.Record(BookingRequested{
		BookingID: b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		CheckIn:   b.Range.CheckIn,
		CheckOut:  b.Range.CheckOut,
		Guests:    b.Guests,
		Total:     b.Total,
		At:        now,
	})
	return b, nil
}

// AttachPaymentIntent binds the gateway intent funding this booking. It must happen before the first insert.
func (b *Booking) AttachPaymentIntent(intentID string) error {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return ErrPaymentIntentRequired
	}
	if b.State != StatePending || b.PaymentIntentID != "" {
		return ErrInvalidState
	}
	b.PaymentIntentID = intentID
	return nil
}

func (b *Booking) IsOwnedBy(guestID string) bool {
	return guestID != "" && b.GuestID == guestID
}

// Confirm settles a PENDING booking once the gateway reports the intent as paid.
func (b *Booking) Confirm(intentID string, now time.Time) error {
	if !b.State.CanTransitionTo(StateConfirmed) {
		return ErrInvalidState
	}
	if intentID == "" || intentID != b.PaymentIntentID {
		return ErrPaymentIntentMismatch
	}
	b.State = StateConfirmed
	b.touch(now)
	b.Record(BookingConfirmed{BookingID: b.ID, ListingID: b.ListingID, PaymentIntentID: b.PaymentIntentID, Total: b.Total, At: b.UpdatedAt})
	return nil
}

// Cancel applies the cancellation guards for the given actor.
// Guests may cancel their own PENDING bookings at any time and CONFIRMED ones only before check-in day.
// The system and the gateway may only cancel bookings still awaiting payment.
func (b *Booking) Cancel(actor Actor, reason string, now time.Time) error {
	if actor.Kind == ActorGuest && !b.IsOwnedBy(actor.ID) {
		return ErrNotOwner
	}
	if b.State == StateCancelled {
		return ErrAlreadyCancelled
	}
	if !b.State.CanTransitionTo(StateCancelled) {
		return ErrInvalidState
	}
	switch actor.Kind {
	case ActorGuest:
		if b.State == StateConfirmed && !b.Range.StartsAfter(now) {
			return ErrCancellationWindowClosed
		}
	case ActorSystem, ActorGateway:
		if b.State != StatePending {
			return ErrInvalidState
		}
	default:
		return ErrInvalidState
	}
	previous := b.State
	b.State = StateCancelled
	b.CancelReason = reason
	b.touch(now)
	b.Record(BookingCancelled{
		BookingID:     b.ID,
		ListingID:     b.ListingID,
		PreviousState: previous,
		By:            actor.Kind,
		Reason:        reason,
		At:            b.UpdatedAt,
	})
	return nil
}

// Expire cancels a PENDING booking whose payment did not settle within ttl.
func (b *Booking) Expire(now time.Time, ttl time.Duration) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	if now.Before(b.CreatedAt.Add(ttl)) {
		return ErrNotExpired
	}
	return b.Cancel(SystemActor(), ReasonPaymentTimeout, now)
}

// Complete closes a CONFIRMED booking once its checkout day has been reached.
func (b *Booking) Complete(now time.Time) error {
	if !b.State.CanTransitionTo(StateCompleted) {
		return ErrInvalidState
	}
	if !b.Range.EndedBy(now) {
		return ErrStayNotFinished
	}
	b.State = StateCompleted
	b.touch(now)
	b.Record(BookingCompleted{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return nil
}

// Clone copies the booking without its pending events.
func (b *Booking) Clone() *Booking {
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

func (b *Booking) touch(now time.Time) {
	b.UpdatedAt = now.UTC()
}
