package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"booking-service/internal/domain/listings"
	"booking-service/internal/domain/shared/money"
	"booking-service/internal/domain/user"
)

type fixtureFile struct {
	Listings []listingFixture `json:"listings"`
	Profiles []profileFixture `json:"profiles"`
}

type listingFixture struct {
	ID           string `json:"id"`
	Host         string `json:"host"`
	Title        string `json:"title"`
	City         string `json:"city"`
	Country      string `json:"country"`
	ThumbnailURL string `json:"thumbnail_url"`
	NightlyRate  string `json:"nightly_rate"`
	Currency     string `json:"currency"`
	GuestsLimit  int    `json:"guests_limit"`
}

type profileFixture struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// loadFixtures seeds the catalog from a JSON file. Invalid entries are logged and skipped.
func loadFixtures(ctx context.Context, path string, c catalog, logger *slog.Logger) error {
	if path == "" {
		path = defaultFixturesPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("listing fixtures file empty", "path", path)
		return nil
	}

	var fixtures fixtureFile
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	for _, fx := range fixtures.Profiles {
		p := user.Profile{ID: user.ID(strings.TrimSpace(fx.ID)), Name: fx.Name, Email: fx.Email}
		if err := c.profiles.Save(ctx, p); err != nil {
			logger.Error("cannot store fixture profile", "user_id", fx.ID, "error", err)
		}
	}

	imported := 0
	for _, fx := range fixtures.Listings {
		currency := fx.Currency
		if currency == "" {
			currency = "USD"
		}
		rate, err := money.ParseMajor(fx.NightlyRate, currency)
		if err != nil {
			logger.Error("fixture nightly rate invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		listing, err := listings.NewListing(listings.CreateListingParams{
			ID:           listings.ListingID(fx.ID),
			Host:         listings.HostID(fx.Host),
			Title:        fx.Title,
			City:         fx.City,
			Country:      fx.Country,
			ThumbnailURL: fx.ThumbnailURL,
			NightlyRate:  rate,
			GuestsLimit:  fx.GuestsLimit,
		})
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := c.listings.Save(ctx, listing); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("listing fixtures imported", "count", imported, "profiles", len(fixtures.Profiles), "path", path)
	return nil
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "listings.json"),
		filepath.Join("..", "..", "data", "listings.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}
