package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is a single (timestamp, price) sample. On the wire it is a
// two-element array of epoch milliseconds and price, matching the upstream
// market_chart format.
type PricePoint struct {
	Timestamp time.Time
	Price     decimal.Decimal
}

// NewPricePoint builds a point from epoch milliseconds and a float price.
func NewPricePoint(epochMillis int64, price float64) PricePoint {
	return PricePoint{
		Timestamp: time.UnixMilli(epochMillis).UTC(),
		Price:     decimal.NewFromFloat(price),
	}
}

func (p PricePoint) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("[%d,%s]", p.Timestamp.UnixMilli(), p.Price.String())), nil
}

func (p *PricePoint) UnmarshalJSON(data []byte) error {
	var raw []json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("price point: %w", err)
	}
	if len(raw) < 2 {
		return fmt.Errorf("price point: expected [timestamp, value], got %d elements", len(raw))
	}

	ts, err := raw[0].Float64()
	if err != nil {
		return fmt.Errorf("price point timestamp %q: %w", raw[0], err)
	}
	// upstream occasionally sends null for a missing sample
	price := decimal.Zero
	if raw[1] != "" {
		price, err = decimal.NewFromString(raw[1].String())
		if err != nil {
			return fmt.Errorf("price point value %q: %w", raw[1], err)
		}
	}

	p.Timestamp = time.UnixMilli(int64(ts)).UTC()
	p.Price = price
	return nil
}
