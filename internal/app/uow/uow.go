package uow

import (
	"context"

	"booking-service/internal/app/outbox"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	domainuser "booking-service/internal/domain/user"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
// Writes to Bookings and Outbox become visible together on Commit.
type UnitOfWork interface {
	Listings() domainlistings.Repository
	Bookings() domainbooking.Repository
	Guests() domainuser.Directory
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
