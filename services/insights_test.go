package services

import (
	"testing"

	"car-price-app/models"
)

func sampleListings() []*models.Listing {
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

func TestInsightPrices(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(40000, sampleListings())

	if r.Count != 8 {
		t.Errorf("Count: got %d, want 8", r.Count)
	}
	if r.AveragePrice != 39687.5 {
		t.Errorf("AveragePrice: got %.2f, want 39687.50", r.AveragePrice)
	}
	if r.MinPrice != 37000 {
		t.Errorf("MinPrice: got %.2f, want 37000", r.MinPrice)
	}
	if r.MaxPrice != 42000 {
		t.Errorf("MaxPrice: got %.2f, want 42000", r.MaxPrice)
	}
	if r.AverageVsPrice != -312.5 {
		t.Errorf("AverageVsPrice: got %.2f, want -312.50", r.AverageVsPrice)
	}
}

func TestInsightExtremes(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(40000, sampleListings())

	if r.MostExpensive == nil || r.MostExpensive.Label != "Volkswagen Polo 2017" {
		t.Errorf("MostExpensive: got %+v", r.MostExpensive)
	}
	if r.Cheapest == nil || r.Cheapest.Label != "Skoda Fabia 2017" {
		t.Errorf("Cheapest: got %+v", r.Cheapest)
	}
}

func TestInsightSingleListing(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	only := sampleListings()[:1]
	r := svc.Generate(39500, only)

	if r.MostExpensive != only[0] || r.Cheapest != only[0] {
		t.Error("single listing should be both cheapest and most expensive")
	}
	if r.AverageVsPrice != 0 {
		t.Errorf("AverageVsPrice: got %.2f, want 0", r.AverageVsPrice)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(1000, nil)
	if r.Count != 0 || r.MostExpensive != nil {
		t.Errorf("expected zero report for empty input, got %+v", r)
	}
}
