package reconcile

import (
	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
	"crypto_arb/pkg/safe"
)

// FundedEntries returns the longest prefix of levels whose cumulative cost
// fits in available. Cost is price*qty in quote units when consumesQuote is
// set (bids), otherwise qty in base units (asks). Quote cost is rounded up;
// a level whose cost does not fit in int64 is unaffordable.
//
// The walk stops at the first level that does not fit: smaller levels behind
// it are not considered, and no level is split into a partial quantity.
func FundedEntries(levels []domain.PriceLevel, available int64, consumesQuote bool) []domain.PriceLevel {
	if available <= 0 || len(levels) == 0 {
		return nil
	}

	var spent int64
	n := 0
	for _, l := range levels {
		cost := int64(l.Qty)
		if consumesQuote {
			c, ok := quant.NotionalCost(l.Price, l.Qty)
			if !ok {
				break
			}
			cost = int64(c)
		}
		if cost < 0 || cost > safe.SafeSub(available, spent) {
			break
		}
		spent = safe.SafeAdd(spent, cost)
		n++
	}
	if n == 0 {
		return nil
	}

	out := make([]domain.PriceLevel, n)
	copy(out, levels[:n])
	return out
}

// FundedSide applies FundedEntries with the funding a side consumes:
// bids spend quote, asks spend base.
func FundedSide(side domain.BookSide, bal domain.Balance) domain.BookSide {
	if side.Side == domain.Bid {
		return domain.BookSide{Side: side.Side, Levels: FundedEntries(side.Levels, int64(bal.QuoteAvailable), true)}
	}
	return domain.BookSide{Side: side.Side, Levels: FundedEntries(side.Levels, int64(bal.BaseAvailable), false)}
}
