package execution

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/infra/bitstamp"
	"crypto_arb/pkg/quant"
)

// PaperReference logs the hedge request it would POST and keeps a record of
// it. Nothing leaves the process.
type PaperReference struct {
	baseURL string

	mu     sync.Mutex
	orders []domain.Hedge
}

func NewPaperReference(baseURL string) *PaperReference {
	return &PaperReference{baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *PaperReference) SubmitOrder(ctx context.Context, side domain.Side, price quant.PriceSats, qty quant.QtySats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := "/api/sell/"
	if side == domain.Bid {
		path = "/api/buy/"
	}
	slog.Info("📝 PAPER HEDGE",
		"url", p.baseURL+path,
		"price", bitstamp.FormatPrice(price),
		"amount", bitstamp.FormatAmount(qty),
	)

	p.mu.Lock()
	p.orders = append(p.orders, domain.Hedge{Side: side, Price: price, Qty: qty})
	p.mu.Unlock()
	return nil
}

// Orders returns the hedges logged so far.
func (p *PaperReference) Orders() []domain.Hedge {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Hedge(nil), p.orders...)
}
