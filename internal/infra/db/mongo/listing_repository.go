package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/money"
	domainuser "booking-service/internal/domain/user"
)

// ListingRepository reads the catalog projection maintained by the listings service.
type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection("listings")}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return &domainlistings.Listing{
		ID:           domainlistings.ListingID(doc.ID),
		Host:         domainlistings.HostID(doc.HostID),
		Title:        doc.Title,
		City:         doc.City,
		Country:      doc.Country,
		ThumbnailURL: doc.ThumbnailURL,
		NightlyRate:  money.Money{Amount: doc.NightlyRate.Amount, Currency: doc.NightlyRate.Currency},
		GuestsLimit:  doc.GuestsLimit,
	}, nil
}

// Save upserts a listing; used when seeding fixtures.
func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	doc := listingDocument{
		ID:           string(l.ID),
		HostID:       string(l.Host),
		Title:        l.Title,
		City:         l.City,
		Country:      l.Country,
		ThumbnailURL: l.ThumbnailURL,
		NightlyRate:  moneyDocument{Amount: l.NightlyRate.Amount, Currency: l.NightlyRate.Currency},
		GuestsLimit:  l.GuestsLimit,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type listingDocument struct {
	ID           string        `bson:"_id"`
	HostID       string        `bson:"host_id"`
	Title        string        `bson:"title"`
	City         string        `bson:"city"`
	Country      string        `bson:"country"`
	ThumbnailURL string        `bson:"thumbnail_url"`
	NightlyRate  moneyDocument `bson:"nightly_rate"`
	GuestsLimit  int           `bson:"guests_limit"`
}

// Directory resolves profiles from the users collection.
type Directory struct {
	col *mongo.Collection
}

func NewDirectory(db *mongo.Database) *Directory {
	return &Directory{col: db.Collection("users")}
}

func (d *Directory) ByID(ctx context.Context, id domainuser.ID) (*domainuser.Profile, error) {
	var doc struct {
		ID    string `bson:"_id"`
		Name  string `bson:"name"`
		Email string `bson:"email"`
	}
	if err := d.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return &domainuser.Profile{ID: domainuser.ID(doc.ID), Name: doc.Name, Email: doc.Email}, nil
}

func (d *Directory) Save(ctx context.Context, p domainuser.Profile) error {
	_, err := d.col.ReplaceOne(ctx, bson.M{"_id": string(p.ID)},
		bson.M{"_id": string(p.ID), "name": p.Name, "email": p.Email},
		options.Replace().SetUpsert(true))
	return err
}

var (
	_ domainlistings.Repository = (*ListingRepository)(nil)
	_ domainuser.Directory      = (*Directory)(nil)
)
