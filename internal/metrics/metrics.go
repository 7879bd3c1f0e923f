package metrics

import (
	"net/http"
	"time"

	"crypto_arb/pkg/quant"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	BookUpdates   *prometheus.CounterVec
	Commands      *prometheus.CounterVec
	CommandErrors prometheus.Counter
	Executions    *prometheus.CounterVec
	Hedges        *prometheus.CounterVec
	OpenOrders    *prometheus.GaugeVec
	Balance       *prometheus.GaugeVec
	Exposure      prometheus.Gauge
	Connected     *prometheus.GaugeVec
	EventLatency  *prometheus.HistogramVec
	Breaker       *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BookUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_book_updates_total",
			Help: "Reference book snapshots processed, by result.",
		}, []string{"result"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_commands_total",
			Help: "Order commands sent to the target venue.",
		}, []string{"type", "side"}),
		CommandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arb_command_errors_total",
			Help: "Order commands that failed to send.",
		}),
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_execution_reports_total",
			Help: "Target venue execution reports, by exec type.",
		}, []string{"exec_type"}),
		Hedges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_hedges_total",
			Help: "Reference venue hedges, by result.",
		}, []string{"result"}),
		OpenOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arb_open_orders",
			Help: "Tracked target orders by side and state.",
		}, []string{"side", "state"}),
		Balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arb_balance",
			Help: "Available target balance in whole units.",
		}, []string{"currency"}),
		Exposure: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arb_exposure_base",
			Help: "Unhedged base quantity (target net plus reference net).",
		}),
		Connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arb_connected",
			Help: "1 while the named transport is connected.",
		}, []string{"source"}),
		EventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arb_event_seconds",
			Help:    "Engine time spent per event.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"type"}),
		Breaker: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arb_circuit_transitions_total",
			Help: "Circuit breaker state changes, by breaker and new state.",
		}, []string{"name", "state"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BookUpdates, m.Commands, m.CommandErrors, m.Executions, m.Hedges,
		m.OpenOrders, m.Balance, m.Exposure, m.Connected, m.EventLatency, m.Breaker,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BookUpdate(result string) {
	if m == nil {
		return
	}
	m.BookUpdates.WithLabelValues(result).Inc()
}

func (m *Metrics) Command(typ, side string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CommandErrors.Inc()
		return
	}
	m.Commands.WithLabelValues(typ, side).Inc()
}

func (m *Metrics) Execution(execType string) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(execType).Inc()
}

func (m *Metrics) Hedge(result string) {
	if m == nil {
		return
	}
	m.Hedges.WithLabelValues(result).Inc()
}

// SetOpenOrders replaces the open order gauges of one side.
func (m *Metrics) SetOpenOrders(side string, counts map[string]int) {
	if m == nil {
		return
	}
	for _, state := range []string{"PENDING", "RESTING", "CANCELLING"} {
		m.OpenOrders.WithLabelValues(side, state).Set(float64(counts[state]))
	}
}

func (m *Metrics) SetBalance(quote quant.PriceSats, base quant.QtySats) {
	if m == nil {
		return
	}
	m.Balance.WithLabelValues("quote").Set(float64(quote) / quant.Scale)
	m.Balance.WithLabelValues("base").Set(float64(base) / quant.Scale)
}

func (m *Metrics) SetExposure(q quant.QtySats) {
	if m == nil {
		return
	}
	m.Exposure.Set(float64(q) / quant.Scale)
}

func (m *Metrics) SetConnected(source string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.Connected.WithLabelValues(source).Set(v)
}

// BreakerTransition counts a circuit breaker entering state.
func (m *Metrics) BreakerTransition(name, state string) {
	if m == nil {
		return
	}
	m.Breaker.WithLabelValues(name, state).Inc()
}

func (m *Metrics) ObserveEvent(typ string, d time.Duration) {
	if m == nil {
		return
	}
	m.EventLatency.WithLabelValues(typ).Observe(d.Seconds())
}

// RegisterFeedCounters exposes a feed's own counters without copying them.
func (m *Metrics) RegisterFeedCounters(source string, received, dropped func() uint64) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"source": source}
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "arb_feed_messages_total",
			Help:        "Book snapshots received from the feed.",
			ConstLabels: labels,
		}, func() float64 { return float64(received()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name:        "arb_feed_dropped_total",
			Help:        "Book snapshots dropped because the engine inbox was full.",
			ConstLabels: labels,
		}, func() float64 { return float64(dropped()) }),
	)
}

// RegisterBreaker exposes a circuit breaker state (0 closed, 1 open, 2 half-open).
func (m *Metrics) RegisterBreaker(name string, state func() int) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "arb_circuit_state",
		Help:        "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		ConstLabels: prometheus.Labels{"name": name},
	}, func() float64 { return float64(state()) }))
}
