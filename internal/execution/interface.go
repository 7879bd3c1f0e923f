package execution

import (
	"context"

	"crypto_arb/internal/domain"
	"crypto_arb/pkg/quant"
)

// TargetVenue is the session on the venue where orders rest.
// Login and reconnects are handled by the implementation; outcomes arrive
// on the engine inbox as events.
type TargetVenue interface {
	SendOrderCommand(ctx context.Context, cmd domain.Command) error
	CancelAll(ctx context.Context) error
	RequestBalances(ctx context.Context) error
}

// ReferenceTrading places hedge orders on the reference venue.
type ReferenceTrading interface {
	SubmitOrder(ctx context.Context, side domain.Side, price quant.PriceSats, qty quant.QtySats) error
}
