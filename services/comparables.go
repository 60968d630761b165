package services

import (
	"math"

	"car-price-app/models"
)

// ComparableMargin is the relative distance within which a listing counts
// as comparable to an estimate.
const ComparableMargin = 0.10

// FindComparables returns, in their original order, the listings whose price
// is within ±10% of price (inclusive). The result is never nil so "none
// matched" stays distinct from "not computed".
func FindComparables(price float64, listings []*models.Listing) []*models.Listing {
	margin := price * ComparableMargin
	out := make([]*models.Listing, 0)
	for _, l := range listings {
		if math.Abs(l.Price-price) <= margin {
			out = append(out, l)
		}
	}
	return out
}
