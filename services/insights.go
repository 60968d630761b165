package services

import (
	"car-price-app/models"
	"car-price-app/utils"
)

// InsightService summarises the comparable listings of an estimate.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate builds the report for the listings found around price. An empty
// input yields a zero report.
func (s *InsightService) Generate(price float64, listings []*models.Listing) *models.ComparableReport {
	report := &models.ComparableReport{}
	if len(listings) == 0 {
		return report
	}

	report.Count = len(listings)
	report.MinPrice = listings[0].Price
	report.MaxPrice = listings[0].Price
	report.Cheapest = listings[0]
	report.MostExpensive = listings[0]

	var total float64
	for _, l := range listings {
		total += l.Price
		if l.Price < report.MinPrice {
			report.MinPrice = l.Price
			report.Cheapest = l
		}
		if l.Price > report.MaxPrice {
			report.MaxPrice = l.Price
			report.MostExpensive = l
		}
	}

	report.AveragePrice = round2(total / float64(len(listings)))
	report.MinPrice = round2(report.MinPrice)
	report.MaxPrice = round2(report.MaxPrice)
	report.AverageVsPrice = round2(report.AveragePrice - price)
	return report
}

func round2(f float64) float64 {
	if f < 0 {
		return -round2(-f)
	}
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
