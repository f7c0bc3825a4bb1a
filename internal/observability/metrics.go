package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "metar_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the METAR pipeline.
type Metrics struct {
	BulletinsFetched    *prometheus.CounterVec // labels: outcome={success,error}
	BlocksParsed        *prometheus.CounterVec // labels: outcome={decoded,skipped_malformed}
	DuplicatesDropped   prometheus.Counter
	ObservationsEmitted prometheus.Counter
	PlansPublished      prometheus.Counter
	PipelineRunning     prometheus.Gauge
	CatalogStations     prometheus.Gauge

	CycleDuration *prometheus.HistogramVec // labels: region

	// Region resolution metrics.
	RegionCache        *prometheus.CounterVec   // labels: layer={memory,store}, result={hit,miss}
	GeocodeRequests    *prometheus.CounterVec   // labels: provider={openai,mapbox}, outcome={success,error,empty}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: provider
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		BulletinsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulletins_fetched_total",
			Help:      "Hourly bulletin retrievals by outcome.",
		}, []string{"outcome"}),
		BlocksParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blocks_parsed_total",
			Help:      "Report blocks processed by the parser pool, by outcome.",
		}, []string{"outcome"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_dropped_total",
			Help:      "Decoded observations collapsed as exact duplicates.",
		}),
		ObservationsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_emitted_total",
			Help:      "Observations surviving dedupe and region filtering.",
		}),
		PlansPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_published_total",
			Help:      "Render payloads written to the plans topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the cycle loop is active, 0 when shut down.",
		}),
		CatalogStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_stations",
			Help:      "Number of domestic stations in the loaded catalog.",
		}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete resolve-fetch-parse-plan cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"region"}),
		RegionCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "region_cache_total",
			Help:      "Region cache lookups by layer and result.",
		}, []string{"layer", "result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Region geocoding requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Region geocoding request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
	}

	prometheus.MustRegister(
		m.BulletinsFetched,
		m.BlocksParsed,
		m.DuplicatesDropped,
		m.ObservationsEmitted,
		m.PlansPublished,
		m.PipelineRunning,
		m.CatalogStations,
		m.CycleDuration,
		m.RegionCache,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		BulletinsFetched:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "bulletins_fetched_total"}, []string{"outcome"}),
		BlocksParsed:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "blocks_parsed_total"}, []string{"outcome"}),
		DuplicatesDropped:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "duplicates_dropped_total"}),
		ObservationsEmitted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "observations_emitted_total"}),
		PlansPublished:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "plans_published_total"}),
		PipelineRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		CatalogStations:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "catalog_stations"}),
		CycleDuration:       prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "cycle_duration_seconds"}, []string{"region"}),
		RegionCache:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "region_cache_total"}, []string{"layer", "result"}),
		GeocodeRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"provider", "outcome"}),
		GeocodeAPIDuration:  prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}, []string{"provider"}),
	}
}
