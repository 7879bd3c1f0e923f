package domain

import "crypto_arb/pkg/quant"

// ExecType values of a target venue execution report.
const (
	ExecNew       = "0"
	ExecPartial   = "1"
	ExecFill      = "2"
	ExecCancelled = "4"
	ExecRejected  = "8"
	ExecTrade     = "F"
)

// ExecutionReport is the venue's report about one of our orders.
type ExecutionReport struct {
	ExecType  string          `json:"exec_type"`
	OrdStatus string          `json:"ord_status"`
	ClientID  string          `json:"client_id"`
	Side      Side            `json:"side"`
	Price     quant.PriceSats `json:"price,string"`
	LastQty   quant.QtySats   `json:"last_qty,string"`
	LastPx    quant.PriceSats `json:"last_px,string"`
	LeavesQty quant.QtySats   `json:"leaves_qty,string"`
}

// IsNeutral reports whether the report carries no fill to hedge.
func (r ExecutionReport) IsNeutral() bool {
	return r.ExecType == ExecNew || r.ExecType == ExecCancelled
}

// IsFill reports whether the report should be hedged on the reference venue.
func (r ExecutionReport) IsFill() bool {
	return !r.IsNeutral() && r.ExecType != ExecRejected && r.LastQty > 0
}

// FillPrice prefers the last execution price and falls back to the order price.
func (r ExecutionReport) FillPrice() quant.PriceSats {
	if r.LastPx > 0 {
		return r.LastPx
	}
	return r.Price
}

// Hedge is an order on the reference venue offsetting a target fill.
type Hedge struct {
	Side     Side            `json:"side"`
	Price    quant.PriceSats `json:"price,string"`
	Qty      quant.QtySats   `json:"qty,string"`
	SourceID string          `json:"source_id"`
}
