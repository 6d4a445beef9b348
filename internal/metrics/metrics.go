// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the bot increments. A nil *Metrics is valid
// and records nothing, so tests and scripts can skip registration.
type Metrics struct {
	SignalsParsed     prometheus.Counter
	SignalsDispatched prometheus.Counter
	OrdersOpened      prometheus.Counter
	OrdersDuplicate   prometheus.Counter
	CommandsProcessed *prometheus.CounterVec
	TrailingMoves     prometheus.Counter
	PendingsCancelled prometheus.Counter
	BrokerErrors      *prometheus.CounterVec
	OpenPositions     prometheus.Gauge
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignalsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teletrader_signals_parsed_total",
			Help: "Chat messages parsed into complete signals.",
		}),
		SignalsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teletrader_signals_dispatched_total",
			Help: "Signals accepted by the dispatcher after gating.",
		}),
		OrdersOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teletrader_orders_opened_total",
			Help: "Broker orders opened.",
		}),
		OrdersDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teletrader_orders_duplicate_total",
			Help: "Open requests suppressed as duplicates of live tickets.",
		}),
		CommandsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teletrader_commands_processed_total",
			Help: "Operator commands applied, by intent.",
		}, []string{"intent"}),
		TrailingMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teletrader_trailing_moves_total",
			Help: "Stop-loss advances performed by the lifecycle engine.",
		}),
		PendingsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teletrader_pendings_cancelled_total",
			Help: "Pending orders cancelled by arbitration.",
		}),
		BrokerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teletrader_broker_errors_total",
			Help: "Broker call failures, by class.",
		}, []string{"class"}),
		OpenPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teletrader_open_positions",
			Help: "Open positions observed on the last tick.",
		}),
	}
	reg.MustRegister(
		m.SignalsParsed, m.SignalsDispatched, m.OrdersOpened, m.OrdersDuplicate,
		m.CommandsProcessed, m.TrailingMoves, m.PendingsCancelled,
		m.BrokerErrors, m.OpenPositions,
	)
	return m
}

// IncSignalsParsed is nil-safe.
func (m *Metrics) IncSignalsParsed() {
	if m != nil {
		m.SignalsParsed.Inc()
	}
}

// IncSignalsDispatched is nil-safe.
func (m *Metrics) IncSignalsDispatched() {
	if m != nil {
		m.SignalsDispatched.Inc()
	}
}

// IncOrdersOpened is nil-safe.
func (m *Metrics) IncOrdersOpened() {
	if m != nil {
		m.OrdersOpened.Inc()
	}
}

// IncOrdersDuplicate is nil-safe.
func (m *Metrics) IncOrdersDuplicate() {
	if m != nil {
		m.OrdersDuplicate.Inc()
	}
}

// IncCommand is nil-safe.
func (m *Metrics) IncCommand(intent string) {
	if m != nil {
		m.CommandsProcessed.WithLabelValues(intent).Inc()
	}
}

// IncTrailingMoves is nil-safe.
func (m *Metrics) IncTrailingMoves() {
	if m != nil {
		m.TrailingMoves.Inc()
	}
}

// IncPendingsCancelled is nil-safe.
func (m *Metrics) IncPendingsCancelled() {
	if m != nil {
		m.PendingsCancelled.Inc()
	}
}

// IncBrokerError is nil-safe.
func (m *Metrics) IncBrokerError(class string) {
	if m != nil {
		m.BrokerErrors.WithLabelValues(class).Inc()
	}
}

// SetOpenPositions is nil-safe.
func (m *Metrics) SetOpenPositions(n int) {
	if m != nil {
		m.OpenPositions.Set(float64(n))
	}
}
