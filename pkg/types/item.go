package types

import "time"

// Item is a tradeable game object.
type Item struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	ImageURL *string `json:"image_url"`
}

// ItemStats is an item with the aggregates computed from its price
// observations. The price fields are nil when the item has no observations.
type ItemStats struct {
	Item
	AveragePrice *float64 `json:"average_price"`
	MinPrice     *int64   `json:"min_price"`
	MaxPrice     *int64   `json:"max_price"`
	TradeCount   int64    `json:"trade_count"`
}

// ItemSummary is one row of the market listing: statistics plus the
// comma-joined names of the item's tags, nil when it has none.
type ItemSummary struct {
	ItemStats
	Tags *string `json:"tags"`
}

// PricePoint is one entry in an item's price history.
type PricePoint struct {
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemDetail is the detail view of an item. History is newest first and
// never nil.
type ItemDetail struct {
	Details ItemStats    `json:"details"`
	History []PricePoint `json:"history"`
}
