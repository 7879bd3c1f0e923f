package execution

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/event"
	"crypto_arb/internal/infra"
)

// HedgerConfig tunes the hedge worker.
type HedgerConfig struct {
	Backlog     int
	Timeout     time.Duration // per attempt
	RatePerSec  float64
	MaxAttempts int
	Retry       infra.Backoff
}

func DefaultHedgerConfig() HedgerConfig {
	return HedgerConfig{
		Backlog:     256,
		Timeout:     5 * time.Second,
		RatePerSec:  5,
		MaxAttempts: 3,
		Retry:       infra.Backoff{Base: 200 * time.Millisecond, Max: 2 * time.Second},
	}
}

// Hedger submits reference venue orders off the engine loop. Results are
// reported back to the engine inbox as HedgeResultEvents.
type Hedger struct {
	ref     ReferenceTrading
	cfg     HedgerConfig
	queue   chan domain.Hedge
	results chan<- event.Event
	breaker *infra.CircuitBreaker
	limiter *infra.RateLimiter

	closeOnce sync.Once
	done      chan struct{}
}

func NewHedger(ref ReferenceTrading, results chan<- event.Event, cfg HedgerConfig, breaker *infra.CircuitBreaker) *Hedger {
	if breaker == nil {
		breaker = infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("reference"))
	}
	return &Hedger{
		ref:     ref,
		cfg:     cfg,
		queue:   make(chan domain.Hedge, cfg.Backlog),
		results: results,
		breaker: breaker,
		limiter: infra.NewRateLimiter(1, cfg.RatePerSec),
		done:    make(chan struct{}),
	}
}

// Enqueue schedules a hedge without blocking. False means the backlog is full.
func (h *Hedger) Enqueue(hd domain.Hedge) (ok bool) {
	defer func() {
		// Enqueue after Close
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case h.queue <- hd:
		return true
	default:
		return false
	}
}

// Backlog returns the number of queued hedges.
func (h *Hedger) Backlog() int { return len(h.queue) }

// Breaker exposes the circuit breaker state for monitoring.
func (h *Hedger) Breaker() *infra.CircuitBreaker { return h.breaker }

// Close stops accepting hedges. Run drains what is queued and returns.
func (h *Hedger) Close() {
	h.closeOnce.Do(func() { close(h.queue) })
}

// Done is closed when Run returns.
func (h *Hedger) Done() <-chan struct{} { return h.done }

// Run processes the queue until it is closed and drained, or ctx ends.
func (h *Hedger) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			if n := len(h.queue); n > 0 {
				slog.Error("HEDGER_ABANDONED", "pending", n)
			}
			return
		case hd, ok := <-h.queue:
			if !ok {
				return
			}
			err := h.submit(ctx, hd)
			res := event.HedgeResultEvent{BaseEvent: event.NewBase(), Hedge: hd}
			if err != nil {
				res.Err = err.Error()
			}
			if h.results != nil {
				select {
				case h.results <- res:
				case <-ctx.Done():
				}
			}
		}
	}
}

// submit places one reference order. It only retries failures that prove
// the order never reached the venue: a timeout or an error response may
// still have left an order behind, and sending again would over-hedge.
func (h *Hedger) submit(ctx context.Context, hd domain.Hedge) error {
	var err error
	for attempt := 0; attempt < h.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.cfg.Retry.Delay(attempt - 1)):
			}
		}
		if err = h.limiter.Wait(ctx); err != nil {
			return err
		}
		err = h.breaker.Execute(func() error {
			actx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
			defer cancel()
			return h.ref.SubmitOrder(actx, hd.Side, hd.Price, hd.Qty)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, infra.ErrRequestNotSent) {
			if !errors.Is(err, infra.ErrCircuitOpen) {
				slog.Error("HEDGE_OUTCOME_UNKNOWN", "source", hd.SourceID, "attempt", attempt+1, "err", err)
			}
			return err
		}
		slog.Warn("HEDGE_ATTEMPT_FAILED", "source", hd.SourceID, "attempt", attempt+1, "err", err)
	}
	return err
}
