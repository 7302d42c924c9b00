// Package metrics holds the Prometheus collectors for the vidstream backend.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidstream/backend/internal/models"
)

// Collectors groups every metric the service exports on its own registry.
type Collectors struct {
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	TogglesTotal     *prometheus.CounterVec
	CascadeFailures  *prometheus.CounterVec
	AssetReaps       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all collectors.
func New() *Collectors {
	c := &Collectors{
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vidstream_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds, by route, method and status.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method", "status"},
		),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vidstream_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		}),
		TogglesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidstream_toggles_total",
				Help: "Like and subscription toggles, by kind and resulting state.",
			},
			[]string{"kind", "active"},
		),
		CascadeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidstream_cascade_failures_total",
				Help: "Deletes whose dependent records could not all be removed.",
			},
			[]string{"kind"},
		),
		AssetReaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vidstream_asset_reaps_total",
				Help: "Background object storage deletions, by outcome.",
			},
			[]string{"outcome"},
		),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.RequestDuration,
		c.RequestsInFlight,
		c.TogglesTotal,
		c.CascadeFailures,
		c.AssetReaps,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) ObserveToggle(kind string, active bool) {
	c.TogglesTotal.WithLabelValues(kind, strconv.FormatBool(active)).Inc()
}

func (c *Collectors) ObserveCascadeFailure(kind models.TargetKind) {
	c.CascadeFailures.WithLabelValues(string(kind)).Inc()
}

func (c *Collectors) ObserveReap(outcome string) {
	c.AssetReaps.WithLabelValues(outcome).Inc()
}
