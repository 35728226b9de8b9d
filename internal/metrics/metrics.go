// Package metrics holds the prometheus collectors of the bridge service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tuplebridge"

// Request outcomes used as the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Delivery kinds used as the kind label.
const (
	KindAssigned  = "assigned"
	KindNext      = "next_value"
	KindCompleted = "completed"
	KindError     = "error"
)

// Metrics owns a private registry so several services can live in one
// process (tests) without colliding on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	subscriptions prometheus.Gauge
}

// New creates and registers the collectors. It also registers the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatcher",
				Name:      "requests_total",
				Help:      "Inbound requests by opcode and outcome.",
			},
			[]string{"op", "status"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Outbound messages by kind.",
			},
			[]string{"kind"},
		),
		subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "registry",
				Name:      "subscriptions_active",
				Help:      "Subscriptions currently registered.",
			},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.deliveries,
		m.subscriptions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordRequest counts one inbound request. A nil receiver is a no-op.
func (m *Metrics) RecordRequest(op string, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.requests.WithLabelValues(op, status).Inc()
}

// RecordDelivery counts one outbound message. A nil receiver is a no-op.
func (m *Metrics) RecordDelivery(kind string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind).Inc()
}

// SetActiveSubscriptions sets the live subscription gauge. A nil receiver is a no-op.
func (m *Metrics) SetActiveSubscriptions(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
