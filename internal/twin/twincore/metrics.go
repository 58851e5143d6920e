package twincore

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the twin's collectors on a private registry, so several
// twins in one test process never collide.
type Metrics struct {
	Registry *prometheus.Registry
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Faults   *prometheus.CounterVec
}

// NewMetrics creates collectors labelled with the twin name.
func NewMetrics(twin string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)
	labels := prometheus.Labels{"twin": twin}

	return &Metrics{
		Registry: reg,
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "twin_http_requests_total",
			Help:        "HTTP requests served, by route and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "twin_http_request_duration_seconds",
			Help:        "HTTP request latency, by route.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Faults: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "twin_faults_injected_total",
			Help:        "Responses replaced by an injected or random fault.",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
