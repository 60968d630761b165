package storage

import (
	"context"

	"car-price-app/models"
)

// StaticListings is the fixed set of example cars shown when no other
// listing source is configured.
type StaticListings struct{}

// DefaultListings returns a fresh copy of the built-in examples.
func DefaultListings() []*models.Listing {
	return []*models.Listing{
		{Label: "Renault Clio 2018", Price: 39500, Description: "Essence · Manuelle · 110 ch"},
		{Label: "Peugeot 208 2019", Price: 41000, Description: "Diesel · Manuelle · 100 ch"},
		{Label: "Volkswagen Polo 2017", Price: 42000, Description: "Essence · Automatique · 95 ch"},
		{Label: "Hyundai i20 2019", Price: 38500, Description: "Essence · Manuelle · 100 ch"},
		{Label: "Toyota Yaris 2018", Price: 40500, Description: "Essence · Manuelle · 100 ch"},
		{Label: "Kia Rio 2018", Price: 39000, Description: "Essence · Manuelle · 100 ch"},
		{Label: "Skoda Fabia 2017", Price: 37000, Description: "Diesel · Manuelle · 90 ch"},
		{Label: "Citroen C3 2019", Price: 40000, Description: "Essence · Automatique · 110 ch"},
	}
}

func (StaticListings) FetchListings(context.Context) ([]*models.Listing, error) {
	return DefaultListings(), nil
}
