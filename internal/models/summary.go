package models

import "time"

// DailySummary is the OHLC rollup for one metal on one calendar day.
// Exactly one row exists per (date, metal); rebuilding overwrites it.
type DailySummary struct {
	Date           string    `json:"date"` // YYYY-MM-DD
	MetalName      string    `json:"metalName"`
	OpenPrice      float64   `json:"openPrice"`
	HighPrice      float64   `json:"highPrice"`
	LowPrice       float64   `json:"lowPrice"`
	ClosePrice     float64   `json:"closePrice"`
	AvgPrice       float64   `json:"avgPrice"`
	TotalVolume    float64   `json:"totalVolume"`
	PriceChange    float64   `json:"priceChange"`
	PriceChangePct float64   `json:"priceChangePct"`
	CreatedAt      time.Time `json:"createdAt"`
}
