// Package marketdata turns raw reference venue books into fee-adjusted
// fixed-point levels.
package marketdata

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
)

var ErrMalformedBook = errors.New("malformed book")

var scale = decimal.New(1, quant.Decimals)

// maxExponent bounds the decimal exponent accepted from the wire.
const maxExponent = 30

// Fees applied to reference prices before quoting them on the target venue.
type Fees struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Adapt scales every level to 1e8 fixed point. Bid prices are discounted by
// (1 - bidFee) and ask prices inflated by (1 + askFee), truncated toward zero.
// Quantities are not fee adjusted. Any bad level fails the whole book.
func Adapt(raw domain.RawBook, bidFee, askFee decimal.Decimal) (bids, asks []domain.PriceLevel, err error) {
	bids, err = adaptSide(raw.Bids, decimal.NewFromInt(1).Sub(bidFee))
	if err != nil {
		return nil, nil, fmt.Errorf("bids: %w", err)
	}
	asks, err = adaptSide(raw.Asks, decimal.NewFromInt(1).Add(askFee))
	if err != nil {
		return nil, nil, fmt.Errorf("asks: %w", err)
	}
	return bids, asks, nil
}

// AdaptBook is Adapt returning both sides as BookSides.
func AdaptBook(raw domain.RawBook, fees Fees) (domain.BookSide, domain.BookSide, error) {
	bids, asks, err := Adapt(raw, fees.Bid, fees.Ask)
	if err != nil {
		return domain.BookSide{}, domain.BookSide{}, err
	}
	return domain.BookSide{Side: domain.Bid, Levels: bids}, domain.BookSide{Side: domain.Ask, Levels: asks}, nil
}

func adaptSide(rows [][]string, factor decimal.Decimal) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("%w: level %d has %d fields", ErrMalformedBook, i, len(row))
		}
		price, err := parseScaled(row[0], factor)
		if err != nil {
			return nil, fmt.Errorf("%w: level %d price: %v", ErrMalformedBook, i, err)
		}
		qty, err := parseScaled(row[1], decimal.NewFromInt(1))
		if err != nil {
			return nil, fmt.Errorf("%w: level %d qty: %v", ErrMalformedBook, i, err)
		}
		out = append(out, domain.PriceLevel{Price: quant.PriceSats(price), Qty: quant.QtySats(qty)})
	}
	return out, nil
}

func parseScaled(s string, factor decimal.Decimal) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative value %s", s)
	}
	if exp := d.Exponent(); exp < -maxExponent || exp > maxExponent {
		return 0, fmt.Errorf("value %s out of range", s)
	}
	v := d.Mul(factor).Mul(scale).Truncate(0)
	if !v.BigInt().IsInt64() {
		return 0, fmt.Errorf("value %s out of range", s)
	}
	return v.IntPart(), nil
}
