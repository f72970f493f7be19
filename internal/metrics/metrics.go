// Package metrics exposes Prometheus instrumentation for the trading
// engine. Collectors are created unregistered so backtests can use them
// without a registry; the live trader registers them on its status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's collectors.
type Metrics struct {
	ordersSubmitted *prometheus.CounterVec
	ordersFilled    *prometheus.CounterVec
	ordersRejected  *prometheus.CounterVec
	staleCancels    prometheus.Counter
	openPositions   prometheus.Gauge
}

// New creates the collectors without registering them.
func New() *Metrics {
	return &Metrics{
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_orders_submitted_total",
			Help: "Orders submitted to the executor, by side.",
		}, []string{"side"}),
		ordersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_orders_filled_total",
			Help: "Order fill events applied to the ledger, by side.",
		}, []string{"side"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trading_orders_rejected_total",
			Help: "Orders rejected or cancelled by the broker, by side.",
		}, []string{"side"}),
		staleCancels: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trading_stale_orders_cancelled_total",
			Help: "Pending orders cancelled for exceeding the stale timeout.",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trading_open_positions",
			Help: "Number of currently open positions.",
		}),
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ordersSubmitted,
		m.ordersFilled,
		m.ordersRejected,
		m.staleCancels,
		m.openPositions,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

func (m *Metrics) OrderSubmitted(side string) {
	m.ordersSubmitted.WithLabelValues(side).Inc()
}

func (m *Metrics) OrderFilled(side string) {
	m.ordersFilled.WithLabelValues(side).Inc()
}

func (m *Metrics) OrderRejected(side string) {
	m.ordersRejected.WithLabelValues(side).Inc()
}

func (m *Metrics) StaleOrderCancelled() {
	m.staleCancels.Inc()
}

func (m *Metrics) SetOpenPositions(n int) {
	m.openPositions.Set(float64(n))
}
