package domain

import (
	"crypto_arb/pkg/quant"
	"crypto_arb/pkg/safe"
)

// Position tracks base inventory moved by target fills and reference hedges.
// All monetary values are strictly int64.
type Position struct {
	TargetNet    quant.QtySats `json:"target_net,string"`    // bought minus sold on the target venue
	ReferenceNet quant.QtySats `json:"reference_net,string"` // bought minus sold on the reference venue
	Fills        uint64        `json:"fills"`
	Hedges       uint64        `json:"hedges"`
}

// ApplyFill records a target venue fill on side s.
func (p *Position) ApplyFill(s Side, qty quant.QtySats) {
	p.TargetNet = quant.QtySats(safe.SafeAdd(int64(p.TargetNet), signed(s, qty)))
	p.Fills++
}

// ApplyHedge records a reference venue order accepted on side s.
func (p *Position) ApplyHedge(s Side, qty quant.QtySats) {
	p.ReferenceNet = quant.QtySats(safe.SafeAdd(int64(p.ReferenceNet), signed(s, qty)))
	p.Hedges++
}

// Exposure is the unhedged base amount. Positive means long.
func (p *Position) Exposure() quant.QtySats {
	return quant.QtySats(safe.SafeAdd(int64(p.TargetNet), int64(p.ReferenceNet)))
}

// IsFlat checks if every fill has been offset.
func (p *Position) IsFlat() bool {
	return p.Exposure() == 0
}

func signed(s Side, qty quant.QtySats) int64 {
	if s == Ask {
		return -int64(qty)
	}
	return int64(qty)
}
