package domain

import "crypto_arb/pkg/quant"

// PriceLevel is one aggregated price level. Both fields are non-negative.
type PriceLevel struct {
	Price quant.PriceSats `json:"price,string"`
	Qty   quant.QtySats   `json:"qty,string"`
}

// BookSide is a snapshot of one side of a book, best price first.
// A new BookSide is built for every update; it is never mutated in place.
type BookSide struct {
	Side   Side         `json:"side"`
	Levels []PriceLevel `json:"levels"`
}

// Best returns the top level, or false if the side is empty.
func (b BookSide) Best() (PriceLevel, bool) {
	if len(b.Levels) == 0 {
		return PriceLevel{}, false
	}
	return b.Levels[0], true
}

// MarketState holds the last adapted reference book.
// Fields are ordered for cache-line efficiency: hot fields first.
type MarketState struct {
	BestBid         quant.PriceSats `json:"best_bid,string"`
	BestAsk         quant.PriceSats `json:"best_ask,string"`
	LastUpdateUnixM quant.TimeStamp `json:"last_update,string"`
	BidLevels       int             `json:"bid_levels"`
	AskLevels       int             `json:"ask_levels"`
	Symbol          string          `json:"symbol"`
}

// RawBook is a reference book as received: [price, qty] decimal strings per level.
type RawBook struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
}
