package models

import "time"

// MetalPrice is one observation from the terminal feed. Rows are append-only;
// duplicate (metal, timestamp) pairs are allowed.
type MetalPrice struct {
	ID            int64     `json:"id"`
	Ticker        string    `json:"ticker"`
	MetalName     string    `json:"metalName"`
	Price         float64   `json:"price"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
	Bid           *float64  `json:"bid,omitempty"`
	Ask           *float64  `json:"ask,omitempty"`
	Volume        *float64  `json:"volume,omitempty"`
	OpenPrice     *float64  `json:"openPrice,omitempty"`
	High          *float64  `json:"high,omitempty"`
	Low           *float64  `json:"low,omitempty"`
	PreviousClose *float64  `json:"previousClose,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// PriceStats aggregates observations over a trailing window.
// A window with no rows yields the zero value, not an error.
type PriceStats struct {
	DataPoints  int64   `json:"dataPoints"`
	AvgPrice    float64 `json:"avgPrice"`
	MinPrice    float64 `json:"minPrice"`
	MaxPrice    float64 `json:"maxPrice"`
	PriceStddev float64 `json:"priceStddev"`
	AvgVolume   float64 `json:"avgVolume"`
	TotalVolume float64 `json:"totalVolume"`
}
