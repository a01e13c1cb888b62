package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/policies"
	"booking-service/internal/app/queries"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	domainuser "booking-service/internal/domain/user"
)

const getBookingReceiptKey = "booking.receipt"

var (
	ErrReceiptUnavailable = errors.New("booking: receipt is only issued for paid bookings")
	ErrRendererRequired   = errors.New("booking: receipt renderer required")
)

type GetBookingReceiptQuery struct {
	BookingID string `validate:"required"`
	GuestID   string `validate:"required"`
}

func (q GetBookingReceiptQuery) Key() string { return getBookingReceiptKey }

func (q GetBookingReceiptQuery) RequiresPrincipal() bool { return true }

type ReceiptDocument struct {
	FileName string
	Content  []byte
}

type GetBookingReceiptHandler struct {
	UoWFactory uow.UoWFactory
	Renderer   policies.ReceiptRenderer
	Clock      func() time.Time
}

func (h *GetBookingReceiptHandler) Handle(ctx context.Context, q GetBookingReceiptQuery) (*ReceiptDocument, error) {
	if h.Renderer == nil {
		return nil, ErrRendererRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		return nil, err
	}
	if !b.IsOwnedBy(q.GuestID) {
		return nil, domainbooking.ErrNotOwner
	}
	if b.State != domainbooking.StateConfirmed && b.State != domainbooking.StateCompleted {
		return nil, ErrReceiptUnavailable
	}
	receipt, err := buildReceipt(execCtx, unit, b, handlersupport.Now(h.Clock), nil)
	if err != nil {
		return nil, err
	}
	content, err := h.Renderer.Render(receipt)
	if err != nil {
		return nil, err
	}
	return &ReceiptDocument{FileName: "receipt-" + string(b.ID) + ".pdf", Content: content}, nil
}

// buildReceipt tolerates a missing listing or guest profile; the receipt then carries ids only.
func buildReceipt(ctx context.Context, unit uow.UnitOfWork, b *domainbooking.Booking, issuedAt time.Time, logger *slog.Logger) (policies.Receipt, error) {
	r := policies.Receipt{
		BookingID:       string(b.ID),
		ListingTitle:    string(b.ListingID),
		GuestName:       b.GuestID,
		CheckIn:         b.Range.CheckIn,
		CheckOut:        b.Range.CheckOut,
		Nights:          b.Range.Nights(),
		Guests:          b.Guests,
		NightlyRate:     b.NightlyRate,
		Total:           b.Total,
		PaymentIntentID: b.PaymentIntentID,
		Status:          string(b.State),
		IssuedAt:        issuedAt,
	}
	listing, err := unit.Listings().ByID(ctx, b.ListingID)
	switch {
	case err == nil:
		r.ListingTitle = listing.Title
		r.ListingCity = listing.City
	case errors.Is(err, domainlistings.ErrListingNotFound):
		if logger != nil {
			logger.Warn("receipt without listing details", "booking_id", b.ID, "listing_id", b.ListingID)
		}
	default:
		return policies.Receipt{}, err
	}
	if guests := unit.Guests(); guests != nil {
		profile, err := guests.ByID(ctx, domainuser.ID(b.GuestID))
		switch {
		case err == nil:
			r.GuestName = profile.Name
			r.GuestEmail = profile.Email
		case !errors.Is(err, domainuser.ErrNotFound):
			return policies.Receipt{}, err
		}
	}
	return r, nil
}

var _ queries.Handler[GetBookingReceiptQuery, *ReceiptDocument] = (*GetBookingReceiptHandler)(nil)
