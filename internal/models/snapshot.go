package models

import (
	"strings"
	"time"
)

// AssetQuote is the latest live view of one asset.
type AssetQuote struct {
	Symbol         string  `json:"symbol"`
	Price          float64 `json:"price"`
	PriceChange24h float64 `json:"price_change_24h"`
}

// AssetSnapshot maps upper-cased symbols to their latest quotes.
type AssetSnapshot map[string]AssetQuote

// Resolve looks an asset up by case-insensitive symbol match.
func (s AssetSnapshot) Resolve(symbol string) (AssetQuote, bool) {
	q, ok := s[strings.ToUpper(strings.TrimSpace(symbol))]
	return q, ok
}

// SentimentSnapshot is the single global market-sentiment reading on the
// feed's native 0-1 scale.
type SentimentSnapshot struct {
	Score     float64   `json:"score"`
	FetchedAt time.Time `json:"fetched_at"`
}
