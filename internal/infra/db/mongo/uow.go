package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/session"

	appoutbox "booking-service/internal/app/outbox"
	"booking-service/internal/app/uow"
	domainbooking "booking-service/internal/domain/booking"
	domainlistings "booking-service/internal/domain/listings"
	domainuser "booking-service/internal/domain/user"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	ListingsRepo domainlistings.Repository
	BookingRepo  domainbooking.Repository
	Directory    domainuser.Directory
	OutboxStore  appoutbox.Outbox
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// NewFactory builds a factory with the default repositories for db.
func NewFactory(db *mongo.Database, box *OutboxStore) Factory {
	return Factory{
		DB:           db,
		ListingsRepo: NewListingRepository(db),
		BookingRepo:  NewBookingRepository(db),
		Directory:    NewDirectory(db),
		OutboxStore:  box,
	}
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadPreference(readpref.Primary())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		readOnly: opts.ReadOnly,
		listings: f.ListingsRepo,
		bookings: f.BookingRepo,
		guests:   f.Directory,
		outbox:   f.OutboxStore,
	}, nil
}

type Unit struct {
	session  mongo.Session
	readOnly bool

	listings domainlistings.Repository
	bookings domainbooking.Repository
	guests   domainuser.Directory
	outbox   appoutbox.Outbox
}

func (u *Unit) Listings() domainlistings.Repository { return u.listings }

func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

func (u *Unit) Guests() domainuser.Directory { return u.guests }

func (u *Unit) Outbox() appoutbox.Outbox { return u.outbox }

// Commit maps transient transaction failures to ErrConflict so callers can report a lost race.
func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(context.WithoutCancel(ctx))
	if u.readOnly {
		return u.session.AbortTransaction(ctx)
	}
	if err := u.session.CommitTransaction(ctx); err != nil {
		if isWriteConflict(err) {
			return domainbooking.ErrConflict
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(context.WithoutCancel(ctx))
	err := u.session.AbortTransaction(ctx)
	if errors.Is(err, session.ErrAbortAfterCommit) || errors.Is(err, session.ErrAbortTwice) {
		return nil
	}
	return err
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory = Factory{}
	_ uow.UnitOfWork = (*Unit)(nil)
)
