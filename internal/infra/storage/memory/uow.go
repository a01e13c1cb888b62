package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "booking-service/internal/app/outbox"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	domainuser "booking-service/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ListingsRepo *ListingRepository
	BookingRepo  *BookingRepository
	Directory    *Directory
	OutboxStore  *Outbox
}

// ErrFactoryMisconfigured indicates missing repositories.
var (
	ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")
	ErrUnitClosed           = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit         = errors.New("memory: write in read-only unit")
)

// Begin starts a unit. Booking writes apply immediately and are undone on Rollback;
// outbox records are staged and only published on Commit.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.BookingRepo == nil || f.OutboxStore == nil {
		return nil, ErrFactoryMisconfigured
	}
	u := &Unit{
		listings: f.ListingsRepo,
		outbox:   f.OutboxStore,
		readOnly: opts.ReadOnly,
	}
	u.bookings = &unitBookings{BookingRepository: f.BookingRepo, unit: u}
	u.staged = &stagedOutbox{unit: u}
	if f.Directory != nil {
		u.guests = f.Directory
	}
	return u, nil
}

type undo struct {
	id       domainbooking.BookingID
	snapshot *domainbooking.Booking
}

// Unit is a uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	mu       sync.Mutex
	listings *ListingRepository
	bookings *unitBookings
	guests   domainuser.Directory
	outbox   *Outbox
	staged   *stagedOutbox
	readOnly bool
	done     bool
	undo     []undo
	records  []appoutbox.EventRecord
}

func (u *Unit) Listings() domainlistings.Repository { return u.listings }

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

func (u *Unit) Guests() domainuser.Directory { return u.guests }

func (u *Unit) Outbox() appoutbox.Outbox { return u.staged }

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	u.outbox.append(u.records...)
	u.records = nil
	u.undo = nil
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return nil
	}
	u.done = true
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.bookings.restore(u.undo[i].id, u.undo[i].snapshot)
	}
	u.undo = nil
	u.records = nil
	return nil
}

func (u *Unit) track(id domainbooking.BookingID, snapshot *domainbooking.Booking) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	u.undo = append(u.undo, undo{id: id, snapshot: snapshot})
	return nil
}

type unitBookings struct {
	*BookingRepository
	unit *Unit
}

func (b *unitBookings) Insert(ctx context.Context, booking *domainbooking.Booking) error {
	if err := b.unit.writable(); err != nil {
		return err
	}
	if err := b.BookingRepository.Insert(ctx, booking); err != nil {
		return err
	}
	return b.unit.track(booking.ID, nil)
}

func (b *unitBookings) UpdateStatus(ctx context.Context, booking *domainbooking.Booking, expected domainbooking.BookingState) error {
	if err := b.unit.writable(); err != nil {
		return err
	}
	before := b.BookingRepository.snapshot(booking.ID)
	if err := b.BookingRepository.UpdateStatus(ctx, booking, expected); err != nil {
		return err
	}
	return b.unit.track(booking.ID, before)
}

func (u *Unit) writable() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

type stagedOutbox struct {
	unit *Unit
}

func (s *stagedOutbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	if err := s.unit.writable(); err != nil {
		return err
	}
	s.unit.mu.Lock()
	defer s.unit.mu.Unlock()
	s.unit.records = append(s.unit.records, record)
	return nil
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
