// ABOUTME: Prometheus metrics for request outcomes and forwarding latency
// ABOUTME: Uses a private registry so tests never collide on registration

package gateway

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	forwardDuration prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dorc_gateway",
			Name:      "requests_total",
			Help:      "Requests by terminal outcome and rejection reason.",
		}, []string{"outcome", "reason"}),
		forwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dorc_gateway",
			Name:      "forward_duration_seconds",
			Help:      "Time spent forwarding authorized requests to the backend.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.requestsTotal, m.forwardDuration)
	return m
}

func (m *metrics) countRequest(outcome, reason string) {
	m.requestsTotal.WithLabelValues(outcome, reason).Inc()
}

func (m *metrics) observeForward(d time.Duration) {
	m.forwardDuration.Observe(d.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
