package availability

import (
	"context"
	"strings"

	"booking-service/internal/app/dto"
	handlersupport "booking-service/internal/app/handlers/support"
	"booking-service/internal/app/queries"
	"booking-service/internal/app/uow"
	domainavailability "booking-service/internal/domain/availability"
	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "availability.check"

type CheckAvailabilityQuery struct {
	ListingID string `validate:"required"`
	CheckIn   string `validate:"required,datetime=2006-01-02"`
	CheckOut  string `validate:"required,datetime=2006-01-02"`
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.Parse(strings.TrimSpace(q.CheckIn), strings.TrimSpace(q.CheckOut))
	if err != nil {
		return dto.Availability{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listingID := domainlistings.ListingID(strings.TrimSpace(q.ListingID))
	if _, err := unit.Listings().ByID(execCtx, listingID); err != nil {
		return dto.Availability{}, err
	}
	conflicts, err := domainavailability.NewChecker(unit.Bookings()).Conflicts(execCtx, listingID, dr)
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(string(listingID), dr, conflicts), nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
