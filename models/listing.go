package models

// RawListing holds a reference listing exactly as read from a CSV file.
// Prices are still free text at this point.
type RawListing struct {
	Label       string
	RawPrice    string
	Description string
}

// Listing is a cleaned reference car shown next to an estimate.
type Listing struct {
	ID          int64   `json:"id,omitempty"`
	Label       string  `json:"label"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

// ComparableReport summarises the listings priced close to an estimate.
type ComparableReport struct {
	Count          int      `json:"count"`
	AveragePrice   float64  `json:"average_price"`
	MinPrice       float64  `json:"min_price"`
	MaxPrice       float64  `json:"max_price"`
	Cheapest       *Listing `json:"cheapest,omitempty"`
	MostExpensive  *Listing `json:"most_expensive,omitempty"`
	AverageVsPrice float64  `json:"average_vs_estimate"`
}
