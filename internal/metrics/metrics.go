package metrics

import (
	"net/http"
	"time"

	"github.com/okanot/commitbadge/internal/githubapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's operational Prometheus instruments on a
// dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	providerRequests *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	aggregationRuns  *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
}

// New creates the metrics set on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		providerRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commitbadge_provider_requests_total",
			Help: "Provider API calls by endpoint and normalized status.",
		}, []string{"endpoint", "status"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commitbadge_cache_lookups_total",
			Help: "Snapshot cache lookups by outcome (fresh, stale, absent).",
		}, []string{"outcome"}),
		aggregationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commitbadge_aggregation_runs_total",
			Help: "Aggregation runs by trigger (synchronous, background) and outcome.",
		}, []string{"trigger", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "commitbadge_aggregation_run_duration_seconds",
			Help:    "Wall-clock duration of aggregation runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"trigger"}),
	}

	registry.MustRegister(m.providerRequests, m.cacheLookups, m.aggregationRuns, m.runDuration)
	return m
}

// Handler returns the /metrics HTTP handler for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ProviderRequest records one provider call outcome. Matches the data
// client's RequestObserver signature.
func (m *Metrics) ProviderRequest(endpoint string, status githubapi.EndpointStatus) {
	m.providerRequests.WithLabelValues(endpoint, string(status)).Inc()
}

// CacheLookup records one cache controller lookup outcome.
func (m *Metrics) CacheLookup(outcome string) {
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RunCompleted records one aggregation run outcome and duration.
func (m *Metrics) RunCompleted(trigger string, outcome string, elapsed time.Duration) {
	m.aggregationRuns.WithLabelValues(trigger, outcome).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}
