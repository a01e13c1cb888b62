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
	domainuser "booking-service/internal/domain/user"
)

const (
	listHostBookingsKey    = "host.bookings.list"
	allStatusesFilterValue = "ALL"
)

type ListHostBookingsQuery struct {
	HostID string `validate:"required"`
	Status string `validate:"omitempty,oneof=ALL PENDING CONFIRMED CANCELLED COMPLETED"`
}

func (q ListHostBookingsQuery) Key() string { return listHostBookingsKey }

func (q ListHostBookingsQuery) RequiresHost() bool { return true }

type ListHostBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListHostBookingsHandler) Handle(ctx context.Context, q ListHostBookingsQuery) (dto.HostBookingCollection, error) {
	hostID := strings.TrimSpace(q.HostID)
	if hostID == "" {
		return dto.HostBookingCollection{}, errors.New("host id is required")
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.HostBookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	bookings, err := unit.Bookings().ListByHost(execCtx, domainlistings.HostID(hostID))
	if err != nil {
		return dto.HostBookingCollection{}, err
	}

	statusFilter := strings.ToUpper(strings.TrimSpace(q.Status))
	allStatuses := statusFilter == "" || statusFilter == allStatusesFilterValue

	listingCache := make(map[domainlistings.ListingID]*domainlistings.Listing)
	guestCache := make(map[string]dto.PersonSummary)
	items := make([]dto.HostBookingSummary, 0, len(bookings))
	for _, b := range bookings {
		if !allStatuses && string(b.State) != statusFilter {
			continue
		}
		listing, err := loadListing(execCtx, unit.Listings(), b.ListingID, listingCache)
		if err != nil && h.Logger != nil {
			h.Logger.Warn("listing snapshot missing for booking", "booking_id", b.ID, "listing_id", b.ListingID, "error", err)
		}
		guest, err := loadPerson(execCtx, unit.Guests(), b.GuestID, guestCache)
		if err != nil {
			return dto.HostBookingCollection{}, err
		}
		items = append(items, dto.MapHostBookingSummary(b, listing, guest))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if h.Logger != nil {
		h.Logger.Debug("host bookings listed", "host_id", hostID, "count", len(items), "status", statusFilter)
	}
	return dto.HostBookingCollection{Items: items}, nil
}

func loadListing(
	ctx context.Context,
	repo domainlistings.Repository,
	id domainlistings.ListingID,
	cache map[domainlistings.ListingID]*domainlistings.Listing,
) (*domainlistings.Listing, error) {
	if listing, ok := cache[id]; ok {
		return listing, nil
	}
	listing, err := repo.ByID(ctx, id)
	if err != nil {
		cache[id] = nil
		return nil, err
	}
	cache[id] = listing
	return listing, nil
}

// loadPerson resolves a profile summary. Unknown ids degrade to an id-only summary.
func loadPerson(ctx context.Context, dir domainuser.Directory, id string, cache map[string]dto.PersonSummary) (dto.PersonSummary, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	if dir == nil {
		return dto.PersonSummary{ID: id}, nil
	}
	profile, err := dir.ByID(ctx, domainuser.ID(id))
	if err != nil && !errors.Is(err, domainuser.ErrNotFound) {
		return dto.PersonSummary{}, err
	}
	summary := dto.MapPersonSummary(id, profile)
	cache[id] = summary
	return summary, nil
}

var _ queries.Handler[ListHostBookingsQuery, dto.HostBookingCollection] = (*ListHostBookingsHandler)(nil)
