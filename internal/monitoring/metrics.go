// Package monitoring exposes run metrics and threshold alerts for
// enrichment runs.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
)

const namespace = "resort_geocoder"

// Metrics holds the Prometheus counters and histograms for one run. Each
// Metrics owns a private registry so runs and tests never share state.
type Metrics struct {
	registry *prometheus.Registry

	Records          *prometheus.CounterVec   // labels: outcome
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome
	ProviderDuration *prometheus.HistogramVec // labels: provider
	CacheFlushes     prometheus.Counter
}

// NewMetrics creates and registers all run metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records processed by final outcome.",
		}, []string{"outcome"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Geocoding provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Geocoding provider call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		CacheFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_flushes_total",
			Help:      "Successful cache file writes.",
		}),
	}

	m.registry.MustRegister(
		m.Records,
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheFlushes,
	)
	return m
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordOutcome(outcome string) {
	m.Records.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveProviderCall(provider, outcome string, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheFlushed() {
	m.CacheFlushes.Inc()
}

// WriteTextfile writes the current metrics in the node-exporter textfile
// format. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}
