package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "booking-service/internal/domain/booking"
	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/daterange"
	"booking-service/internal/domain/shared/money"
)

const (
	bookingsCollection = "bookings"
	guardsCollection   = "listing_guards"
)

// BookingRepository must be used with a session context from Unit.InjectContext.
// Insert bumps a per-listing guard document first, so two transactions inserting into the
// same listing always collide on it and one of them aborts with a write conflict.
type BookingRepository struct {
	col    *mongo.Collection
	guards *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{
		col:    db.Collection(bookingsCollection),
		guards: db.Collection(guardsCollection),
	}
}

func ensureBookingIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(bookingsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "listing_id", Value: 1}, {Key: "state", Value: 1}, {Key: "check_in", Value: 1}}},
		{Keys: bson.D{{Key: "guest_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "payment_intent_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"payment_intent_id": bson.M{"$gt": ""}}),
		},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByPaymentIntent(ctx context.Context, intentID string) (*domainbooking.Booking, error) {
	if intentID == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	return r.findOne(ctx, bson.M{"payment_intent_id": intentID})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// overlapFilter matches active bookings with check_in < dr.CheckOut and check_out > dr.CheckIn.
func overlapFilter(listingID listings.ListingID, dr daterange.DateRange) bson.M {
	return bson.M{
		"listing_id": string(listingID),
		"state":      bson.M{"$in": activeStates()},
		"check_in":   bson.M{"$lt": dr.CheckOut},
		"check_out":  bson.M{"$gt": dr.CheckIn},
	}
}

func (r *BookingRepository) FindActiveOverlapping(ctx context.Context, listingID listings.ListingID, dr daterange.DateRange) ([]*domainbooking.Booking, error) {
	return r.find(ctx, overlapFilter(listingID, dr), options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}}))
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	_, err := r.guards.UpdateOne(ctx,
		bson.M{"_id": string(b.ListingID)},
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if isWriteConflict(err) {
			return domainbooking.ErrConflict
		}
		return fmt.Errorf("mongo: guard listing %s: %w", b.ListingID, err)
	}
	if b.State.IsActive() {
		n, err := r.col.CountDocuments(ctx, overlapFilter(b.ListingID, b.Range), options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n > 0 {
			return domainbooking.ErrConflict
		}
	}
	doc := newBookingDocument(b)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return domainbooking.ErrConflict
		}
		return err
	}
	b.Version = 1
	return nil
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, b *domainbooking.Booking, expected domainbooking.BookingState) error {
	filter := bson.M{"_id": string(b.ID), "state": string(expected)}
	update := bson.M{
		"$set": bson.M{
			"state":         string(b.State),
			"cancel_reason": b.CancelReason,
			"updated_at":    b.UpdatedAt.UTC(),
		},
		"$inc": bson.M{"version": 1},
	}
	var doc bookingDocument
	err := r.col.FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	switch {
	case err == nil:
		b.Version = doc.Version
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		n, countErr := r.col.CountDocuments(ctx, bson.M{"_id": string(b.ID)})
		if countErr != nil {
			return countErr
		}
		if n == 0 {
			return domainbooking.ErrBookingNotFound
		}
		return domainbooking.ErrConcurrentUpdate
	case isWriteConflict(err):
		return domainbooking.ErrConcurrentUpdate
	default:
		return err
	}
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"guest_id": guestID}, newestFirst())
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"host_id": string(hostID)}, newestFirst())
}

func (r *BookingRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{
		"state":      string(domainbooking.StatePending),
		"created_at": bson.M{"$lt": createdBefore.UTC()},
	}, opts)
}

func (r *BookingRepository) ListFinishedConfirmed(ctx context.Context, checkOutBy time.Time, limit int) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_out", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{
		"state":     string(domainbooking.StateConfirmed),
		"check_out": bson.M{"$lte": checkOutBy.UTC()},
	}, opts)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domainbooking.Booking, 0)
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}

func activeStates() []string {
	return []string{string(domainbooking.StatePending), string(domainbooking.StateConfirmed)}
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

type bookingDocument struct {
	ID              string        `bson:"_id"`
	ListingID       string        `bson:"listing_id"`
	HostID          string        `bson:"host_id"`
	GuestID         string        `bson:"guest_id"`
	CheckIn         time.Time     `bson:"check_in"`
	CheckOut        time.Time     `bson:"check_out"`
	Guests          int           `bson:"guests"`
	NightlyRate     moneyDocument `bson:"nightly_rate"`
	Total           moneyDocument `bson:"total"`
	State           string        `bson:"state"`
	PaymentIntentID string        `bson:"payment_intent_id"`
	CancelReason    string        `bson:"cancel_reason,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
	Version         int64         `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		HostID:          string(b.HostID),
		GuestID:         b.GuestID,
		CheckIn:         b.Range.CheckIn.UTC(),
		CheckOut:        b.Range.CheckOut.UTC(),
		Guests:          b.Guests,
		NightlyRate:     moneyDocument{Amount: b.NightlyRate.Amount, Currency: b.NightlyRate.Currency},
		Total:           moneyDocument{Amount: b.Total.Amount, Currency: b.Total.Currency},
		State:           string(b.State),
		PaymentIntentID: b.PaymentIntentID,
		CancelReason:    b.CancelReason,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		Version:         b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:              domainbooking.BookingID(d.ID),
		ListingID:       listings.ListingID(d.ListingID),
		HostID:          listings.HostID(d.HostID),
		GuestID:         d.GuestID,
		Range:           daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Guests:          d.Guests,
		NightlyRate:     money.Money{Amount: d.NightlyRate.Amount, Currency: d.NightlyRate.Currency},
		Total:           money.Money{Amount: d.Total.Amount, Currency: d.Total.Currency},
		State:           domainbooking.BookingState(d.State),
		PaymentIntentID: d.PaymentIntentID,
		CancelReason:    d.CancelReason,
		CreatedAt:       d.CreatedAt.UTC(),
		UpdatedAt:       d.UpdatedAt.UTC(),
		Version:         d.Version,
	}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
