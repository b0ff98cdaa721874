package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mpgame/mp-server/pkg/rpc"
)

// unknownMethodLabel replaces unregistered method names so callers cannot grow
// label cardinality.
const unknownMethodLabel = "_unknown"

// Metrics holds the Prometheus collectors for RPC traffic.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mp_rpc_requests_total",
			Help: "RPC requests dispatched, by method and outcome.",
		}, []string{"method", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mp_rpc_request_duration_seconds",
			Help:    "RPC dispatch latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Middleware records one observation per dispatch.
func (m *Metrics) Middleware(method string, next rpc.Handler) rpc.Handler {
	return rpc.HandlerFunc(func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		start := time.Now()
		out, err := next.Handle(ctx, params)

		label, outcome := method, "ok"
		switch {
		case rpc.IsMethodNotFound(err):
			label, outcome = unknownMethodLabel, "not_found"
		case err != nil:
			outcome = rpc.KindOf(err).String()
		}
		m.requests.WithLabelValues(label, outcome).Inc()
		m.duration.WithLabelValues(label).Observe(time.Since(start).Seconds())
		return out, err
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
