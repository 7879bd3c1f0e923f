package execution

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"crypto_arb/internal/event"
	"crypto_arb/internal/infra"
	"crypto_arb/internal/infra/bitstamp"
)

// Mode represents the trading execution mode
type Mode string

const (
	ModePaper Mode = "PAPER"
	ModeReal  Mode = "REAL"
)

// NewReferenceTrading returns the hedge path for the configured mode.
// REAL sends signed orders to Bitstamp; PAPER only logs what it would send.
func NewReferenceTrading(cfg *infra.Config) (ReferenceTrading, error) {
	mode := Mode(cfg.Trading.Mode)
	bs := cfg.API.Bitstamp

	slog.Info("Initializing Execution System", "mode", mode)

	switch mode {
	case ModePaper:
		return NewPaperReference(bs.RestURL), nil

	case ModeReal:
		// SAFETY LATCH
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			err := fmt.Errorf("SAFETY_GUARD: Real trading requires 'CONFIRM_REAL_MONEY=true' environment variable")
			slog.Error(err.Error())
			return nil, err
		}

		slog.Info("🚨🚨🚨 Connecting to Bitstamp REAL 🚨🚨🚨")
		signer := bitstamp.NewSigner(bs.APIKey, bs.APISecret, bs.CustomerID)
		timeout := time.Duration(bs.TimeoutMS) * time.Millisecond
		return bitstamp.NewClient(bs.RestURL, signer, timeout), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", mode)
	}
}

// NewHedgerFromConfig builds the hedge worker with the configured limits.
func NewHedgerFromConfig(cfg *infra.Config, ref ReferenceTrading, results chan<- event.Event, breaker *infra.CircuitBreaker) *Hedger {
	hc := DefaultHedgerConfig()
	bs := cfg.API.Bitstamp
	if bs.HedgeBacklog > 0 {
		hc.Backlog = bs.HedgeBacklog
	}
	if bs.TimeoutMS > 0 {
		hc.Timeout = time.Duration(bs.TimeoutMS) * time.Millisecond
	}
	if bs.RatePerSec > 0 {
		hc.RatePerSec = float64(bs.RatePerSec)
	}
	return NewHedger(ref, results, hc, breaker)
}
