package models

import (
	"github.com/shopspring/decimal"
)

// MarketSnapshot is one row of the coin list. Snapshots are replaced wholesale
// on every fetch and never merged.
type MarketSnapshot struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Symbol                string              `json:"symbol"`
	Image                 string              `json:"image"`
	CurrentPrice          decimal.Decimal     `json:"current_price"`
	PriceChangePercent24h decimal.NullDecimal `json:"price_change_percentage_24h"`
	MarketCap             decimal.Decimal     `json:"market_cap"`
	MarketCapRank         int                 `json:"market_cap_rank"`
	TotalVolume           decimal.Decimal     `json:"total_volume"`
}

// CoinSearchResult is a single hit from the remote text search.
type CoinSearchResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// MarketChart is the historical series for one coin.
type MarketChart struct {
	Prices       []PricePoint `json:"prices"`
	TotalVolumes []PricePoint `json:"total_volumes"`
}
