package booking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"booking-service/internal/app/dto"
	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/queries"
	"booking-service/internal/app/uow"
	domainlistings "booking-service/internal/domain/listings"
)

const listGuestBookingsKey = "me.bookings.list"

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

func (q ListGuestBookingsQuery) RequiresPrincipal() bool { return true }

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.GuestBookingCollection, error) {
	guestID := strings.TrimSpace(q.GuestID)
	if guestID == "" {
		return dto.GuestBookingCollection{}, errors.New("guest id is required")
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.GuestBookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByGuest(execCtx, guestID)
	if err != nil {
		return dto.GuestBookingCollection{}, err
	}

	listingCache := make(map[domainlistings.ListingID]*domainlistings.Listing)
	hostCache := make(map[string]dto.PersonSummary)
	items := make([]dto.GuestBookingSummary, 0, len(bookings))
	for _, b := range bookings {
		listing, err := loadListing(execCtx, unit.Listings(), b.ListingID, listingCache)
		if err != nil && h.Logger != nil {
			h.Logger.Warn("listing snapshot missing for booking", "booking_id", b.ID, "listing_id", b.ListingID, "error", err)
		}
		var host *dto.PersonSummary
		if b.HostID != "" {
			summary, err := loadPerson(execCtx, unit.Guests(), string(b.HostID), hostCache)
			if err != nil {
				return dto.GuestBookingCollection{}, err
			}
			host = &summary
		}
		items = append(items, dto.MapGuestBookingSummary(b, listing, host))
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if h.Logger != nil {
		h.Logger.Debug("guest bookings listed", "guest_id", guestID, "count", len(items))
	}
	return dto.GuestBookingCollection{Items: items}, nil
}

var _ queries.Handler[ListGuestBookingsQuery, dto.GuestBookingCollection] = (*ListGuestBookingsHandler)(nil)
