package dto

import (
	domainbooking "booking-service/internal/domain/booking"
	"booking-service/internal/domain/shared/daterange"
)

type BlockedSpan struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Status   string `json:"status"`
}

type Availability struct {
	ListingID string        `json:"listing_id"`
	CheckIn   string        `json:"check_in"`
	CheckOut  string        `json:"check_out"`
	Available bool          `json:"available"`
	Conflicts []BlockedSpan `json:"conflicts"`
}

// MapAvailability exposes only the blocked dates of conflicting bookings, never who holds them.
func MapAvailability(listingID string, dr daterange.DateRange, conflicts []*domainbooking.Booking) Availability {
	spans := make([]BlockedSpan, 0, len(conflicts))
	for _, b := range conflicts {
		spans = append(spans, BlockedSpan{
			CheckIn:  daterange.FormatDate(b.Range.CheckIn),
			CheckOut: daterange.FormatDate(b.Range.CheckOut),
			Status:   string(b.State),
		})
	}
	return Availability{
		ListingID: listingID,
		CheckIn:   daterange.FormatDate(dr.CheckIn),
		CheckOut:  daterange.FormatDate(dr.CheckOut),
		Available: len(conflicts) == 0,
		Conflicts: spans,
	}
}
