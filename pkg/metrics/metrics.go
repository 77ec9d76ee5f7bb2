// Package metrics exposes gateway call counters, latencies and the last
// observed contract balance to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

type Registry struct {
	registry     *prometheus.Registry
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	balance      prometheus.Gauge
}

func NewRegistry() *Registry {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tipjar_gateway_calls_total",
		Help: "Gateway operations by outcome",
	}, []string{"op", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tipjar_gateway_call_duration_seconds",
		Help:    "Gateway operation latency, including inclusion waits for transactions",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120, 300},
	}, []string{"op"})

	balance := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tipjar_contract_balance_eth",
		Help: "Last observed tip jar balance in ETH",
	})

	r := prometheus.NewRegistry()
	r.MustRegister(calls, duration, balance)

	return &Registry{
		registry:     r,
		callsTotal:   calls,
		callDuration: duration,
		balance:      balance,
	}
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCall implements gateway.Observer.
func (m *Registry) ObserveCall(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.callsTotal.WithLabelValues(op, status).Inc()
	m.callDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetBalance records a contract balance given in wei, base 10, as ETH.
// Unparsable values are ignored.
func (m *Registry) SetBalance(wei string) {
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return
	}
	v, _ := d.Shift(-18).Float64()
	m.balance.Set(v)
}
