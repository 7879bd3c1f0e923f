package quant

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"crypto_arb/pkg/safe"
)

// PriceSats represents a quote-currency amount multiplied by 100,000,000 (10^8).
// E.g., 99.5 USD = 9,950,000,000 PriceSats. Prices and quote balances share this unit.
type PriceSats int64

// QtySats represents quantity multiplied by 100,000,000 (10^8).
// E.g., 1.0 BTC = 100,000,000 QtySats.
type QtySats int64

// TimeStamp represents Unix Microseconds.
type TimeStamp int64

const (
	Decimals = 8
	Scale    = 100000000
)

var ErrInvalidNumber = errors.New("invalid fixed-point number")

// Notional returns price*qty in quote units at the same 1e8 scale, truncated.
func Notional(p PriceSats, q QtySats) PriceSats {
	return PriceSats(safe.MulDiv(int64(p), int64(q), Scale))
}

// NotionalCost is the quote amount needed to buy q at p, rounded up so dust
// levels are never free. ok is false when it does not fit in int64.
func NotionalCost(p PriceSats, q QtySats) (PriceSats, bool) {
	c, ok := safe.MulDivCeil(int64(p), int64(q), Scale)
	return PriceSats(c), ok
}

func (p PriceSats) String() string { return formatFixed(int64(p)) }

func (q QtySats) String() string { return formatFixed(int64(q)) }

// NextSeq generates the next sequence number atomically.
func NextSeq(ptr *uint64) uint64 {
	return atomic.AddUint64(ptr, 1)
}

// ParsePriceSats parses a decimal string without going through float64.
func ParsePriceSats(s string) (PriceSats, error) {
	v, err := ParseFixed(s, Decimals)
	return PriceSats(v), err
}

// ParseQtySats parses a decimal string without going through float64.
func ParseQtySats(s string) (QtySats, error) {
	v, err := ParseFixed(s, Decimals)
	return QtySats(v), err
}

// ParseFixed parses a numeric string into an int64 with the given precision.
// Extra fraction digits are truncated. E.g., ParseFixed("1.23", 8) -> 123,000,000.
func ParseFixed(s string, precision int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidNumber
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	intStr, fracStr, _ := strings.Cut(s, ".")
	if intStr == "" && fracStr == "" {
		return 0, ErrInvalidNumber
	}
	if len(fracStr) > precision {
		fracStr = fracStr[:precision]
	}

	var v int64
	for _, part := range []string{intStr, fracStr} {
		for i := 0; i < len(part); i++ {
			c := part[i]
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
			}
			if v > (1<<63-1-int64(c-'0'))/10 {
				return 0, fmt.Errorf("%w: %q overflows", ErrInvalidNumber, s)
			}
			v = v*10 + int64(c-'0')
		}
	}
	for i := len(fracStr); i < precision; i++ {
		if v > (1<<63-1)/10 {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidNumber, s)
		}
		v *= 10
	}
	if neg {
		v = -v
	}
	return v, nil
}

func formatFixed(v int64) string {
	sign := ""
	u := uint64(v)
	if v < 0 {
		sign = "-"
		u = uint64(^v) + 1
	}
	return fmt.Sprintf("%s%d.%08d", sign, u/Scale, u%Scale)
}
