package observability

import (
	"time"

	"github.com/growcalendar/grow-calendar/internal/engine"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "growcal"

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec // labels: route, status

	// Upstream provider metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: provider={nws,openmeteo,nass}, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: provider
	Cache            *prometheus.CounterVec   // labels: kind={forecast,stats}, result={hit,miss}

	// Classification metrics.
	FrostPeriods *prometheus.CounterVec // labels: type={none,frost,freeze}
	CropPhases   *prometheus.CounterVec // labels: phase
	CatalogSize  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HTTPRequests,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.Cache,
		m.FrostPeriods,
		m.CropPhases,
		m.CatalogSize,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so tests can
// build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "status"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to weather and crop statistics providers by outcome.",
		}, []string{"provider", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream provider request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_total",
			Help:      "Response cache lookups by kind and result.",
		}, []string{"kind", "result"}),
		FrostPeriods: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frost_periods_total",
			Help:      "Forecast periods classified, by frost type.",
		}, []string{"type"}),
		CropPhases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crop_phases_total",
			Help:      "Crop groups resolved, by phase.",
		}, []string{"phase"}),
		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_crops",
			Help:      "Number of crops in the loaded instruction catalog.",
		}),
	}
}

// ObserveUpstream records one provider call. A nil Metrics is a no-op so the
// CLI can share clients with the daemon without a registry.
func (m *Metrics) ObserveUpstream(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequests.WithLabelValues(provider, outcome).Inc()
	m.UpstreamDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveCache records a cache lookup for kind
func (m *Metrics) ObserveCache(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Cache.WithLabelValues(kind, result).Inc()
}

// ObserveWeather counts the frost classification of every period
func (m *Metrics) ObserveWeather(periods []engine.AnnotatedPeriod) {
	if m == nil {
		return
	}
	for _, p := range periods {
		t := string(p.FrostType)
		if t == "" {
			t = "none"
		}
		m.FrostPeriods.WithLabelValues(t).Inc()
	}
}

// ObservePhases counts resolved crop phases
func (m *Metrics) ObservePhases(results []engine.CropProgress) {
	if m == nil {
		return
	}
	for _, r := range results {
		m.CropPhases.WithLabelValues(string(r.CurrentPhase)).Inc()
	}
}

// SetCatalogSize records the number of crops in the loaded catalog
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(n))
}
