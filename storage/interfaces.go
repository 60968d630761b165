package storage

import (
	"context"

	"car-price-app/models"
)

// ListingReader is the interface any reference listing source must satisfy.
type ListingReader interface {
	FetchListings(ctx context.Context) ([]*models.Listing, error)
}

// RawListingReader reads listings that still need cleaning.
type RawListingReader interface {
	ReadRaw(ctx context.Context) ([]*models.RawListing, error)
}

// EstimateWriter persists completed estimates.
type EstimateWriter interface {
	WriteEstimate(ctx context.Context, e *models.Estimate) error
	Close() error
}
