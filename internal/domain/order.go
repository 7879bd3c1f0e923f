package domain

import (
	"fmt"

	"crypto_arb/pkg/quant"
)

// Side of a book or an order. The string form is the wire tag used by the
// target venue ("1" buy, "2" sell).
type Side uint8

const (
	Bid Side = iota + 1
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "BID"
	case Ask:
		return "ASK"
	}
	return "UNKNOWN"
}

// Tag returns the venue side tag.
func (s Side) Tag() string {
	switch s {
	case Bid:
		return "1"
	case Ask:
		return "2"
	}
	return ""
}

// Opposite returns the side a fill on s is hedged with.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// ParseSide maps a venue side tag to a Side.
func ParseSide(tag string) (Side, error) {
	switch tag {
	case "1":
		return Bid, nil
	case "2":
		return Ask, nil
	}
	return 0, fmt.Errorf("unknown side tag %q", tag)
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the String form or the venue tag.
func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "BID", "1":
		*s = Bid
	case "ASK", "2":
		*s = Ask
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

// OrderState of an order this process placed on the target venue.
type OrderState uint8

const (
	Pending    OrderState = iota + 1 // command sent, not yet acknowledged
	Resting                          // acknowledged by the venue
	Cancelling                       // cancel sent, not yet acknowledged
)

func (s OrderState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Resting:
		return "RESTING"
	case Cancelling:
		return "CANCELLING"
	}
	return "UNKNOWN"
}

func (s OrderState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// OpenOrder is an order on the target venue tracked by a side reconciler.
// All monetary values are strictly int64 fixed point.
type OpenOrder struct {
	ClientID  string          `json:"client_id"`
	Side      Side            `json:"side"`
	Price     quant.PriceSats `json:"price,string"`
	Qty       quant.QtySats   `json:"qty,string"`
	State     OrderState      `json:"state"`
	UpdatedAt quant.TimeStamp `json:"updated_at"`
}

// IsLive reports whether the order still counts toward the quoted set.
func (o *OpenOrder) IsLive() bool {
	return o.State == Pending || o.State == Resting
}

type CommandType uint8

const (
	CmdNew CommandType = iota + 1
	CmdCancel
)

func (t CommandType) String() string {
	switch t {
	case CmdNew:
		return "NEW"
	case CmdCancel:
		return "CANCEL"
	}
	return "UNKNOWN"
}

func (t CommandType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Command is an instruction to the target venue.
type Command struct {
	Type     CommandType     `json:"type"`
	Side     Side            `json:"side"`
	ClientID string          `json:"client_id"`
	Price    quant.PriceSats `json:"price,string"`
	Qty      quant.QtySats   `json:"qty,string"`
}

func (c Command) String() string {
	return fmt.Sprintf("%s %s %s %s@%s", c.Type, c.Side, c.ClientID, c.Qty, c.Price)
}
