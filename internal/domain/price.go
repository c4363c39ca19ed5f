// Package domain declares the core data types shared across the scanner:
// price points, triangular cycles, opportunities, and the signal bus used to
// republish events to the dashboard layer.
package domain

import "time"

// PricePoint is the latest observed price for a single trading pair.
// It is owned by the price cache and overwritten in place on every tick.
type PricePoint struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	ObservedAt time.Time `json:"observed_at"`
}

// TickerStat is a single entry from a 24-hour ticker snapshot, used to rank
// pairs by traded quote volume.
type TickerStat struct {
	Symbol      string  `json:"symbol"`
	QuoteVolume float64 `json:"quote_volume"`
}
