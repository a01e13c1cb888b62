package postgres

import (
	"context"
	"errors"
	"fmt"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domainlistings "booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/money"
	domainuser "booking-service/internal/domain/user"
)

type listingRow struct {
	ID                string `gorm:"primaryKey"`
	HostID            string `gorm:"index;not null"`
	Title             string `gorm:"not null"`
	City              string
	Country           string
	ThumbnailURL      string
	NightlyRateAmount int64  `gorm:"not null"`
	Currency          string `gorm:"size:3;not null"`
	GuestsLimit       int    `gorm:"not null"`
}

func (listingRow) TableName() string { return "listings" }

type userRow struct {
	ID    string `gorm:"primaryKey"`
	Name  string
	Email string `gorm:"index"`
}

func (userRow) TableName() string { return "users" }

// OpenCatalog opens the gorm handle used for listings and user profiles.
func OpenCatalog(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("postgres.OpenCatalog: %w", err)
	}
	return db, nil
}

func MigrateCatalog(db *gorm.DB) error {
	return db.AutoMigrate(&listingRow{}, &userRow{})
}

// ListingRepository reads the catalog through gorm.
type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var row listingRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return &domainlistings.Listing{
		ID:           domainlistings.ListingID(row.ID),
		Host:         domainlistings.HostID(row.HostID),
		Title:        row.Title,
		City:         row.City,
		Country:      row.Country,
		ThumbnailURL: row.ThumbnailURL,
		NightlyRate:  money.Money{Amount: row.NightlyRateAmount, Currency: row.Currency},
		GuestsLimit:  row.GuestsLimit,
	}, nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlistings.Listing) error {
	return r.db.WithContext(ctx).Save(&listingRow{
		ID:                string(l.ID),
		HostID:            string(l.Host),
		Title:             l.Title,
		City:              l.City,
		Country:           l.Country,
		ThumbnailURL:      l.ThumbnailURL,
		NightlyRateAmount: l.NightlyRate.Amount,
		Currency:          l.NightlyRate.Currency,
		GuestsLimit:       l.GuestsLimit,
	}).Error
}

type Directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) ByID(ctx context.Context, id domainuser.ID) (*domainuser.Profile, error) {
	var row userRow
	if err := d.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return &domainuser.Profile{ID: domainuser.ID(row.ID), Name: row.Name, Email: row.Email}, nil
}

func (d *Directory) Save(ctx context.Context, p domainuser.Profile) error {
	return d.db.WithContext(ctx).Save(&userRow{ID: string(p.ID), Name: p.Name, Email: p.Email}).Error
}

var (
	_ domainlistings.Repository = (*ListingRepository)(nil)
	_ domainuser.Directory      = (*Directory)(nil)
)
