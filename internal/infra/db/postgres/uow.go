package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appoutbox "booking-service/internal/app/outbox"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	domainuser "booking-service/internal/domain/user"
)

var ErrUnitClosed = errors.New("postgres: unit of work already finished")

// Factory opens serializable pgx transactions for bookings and the outbox.
// Listings and profiles are read through the catalog outside the transaction.
type Factory struct {
	Pool      *pgxpool.Pool
	Listings  domainlistings.Repository
	Directory domainuser.Directory
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	const op = "postgres.Factory.Begin"
	txOpts := pgx.TxOptions{IsoLevel: pgx.Serializable, AccessMode: pgx.ReadWrite}
	if opts.ReadOnly {
		txOpts = pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadOnly}
	}
	tx, err := f.Pool.BeginTx(ctx, txOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Unit{
		tx:        tx,
		bookings:  NewBookingRepo(tx),
		outbox:    &OutboxRepo{db: tx},
		listings:  f.Listings,
		directory: f.Directory,
	}, nil
}

type Unit struct {
	tx        pgx.Tx
	done      bool
	bookings  *BookingRepo
	outbox    *OutboxRepo
	listings  domainlistings.Repository
	directory domainuser.Directory
}

func (u *Unit) Listings() domainlistings.Repository { return u.listings }

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

func (u *Unit) Guests() domainuser.Directory { return u.directory }

func (u *Unit) Outbox() appoutbox.Outbox { return u.outbox }

func (u *Unit) Commit(ctx context.Context) error {
	const op = "postgres.Unit.Commit"
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, translateDBErr(err))
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	err := u.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
