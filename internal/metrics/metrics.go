// Package metrics holds the Prometheus instrumentation for the telemetry
// core. Served at /metrics by the HTTP transport.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors the ingestion pipeline and the snippet
// sweeper report into. Constructed once per process and passed by reference;
// nothing registers against a package-level default.
type Metrics struct {
	EventsIngested  prometheus.Counter
	EventsRejected  *prometheus.CounterVec // reason: validation|rate_limited|revoked|unknown_device|storage
	SnippetsStored  prometheus.Counter
	SnippetsExpired prometheus.Counter
	HeatmapDuration prometheus.Histogram
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "noisenet_events_ingested_total",
			Help: "Noise events accepted and written to the store.",
		}),
		EventsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "noisenet_events_rejected_total",
			Help: "Noise event submissions rejected, by reason.",
		}, []string{"reason"}),
		SnippetsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "noisenet_snippets_stored_total",
			Help: "Audio snippets accepted into blob storage.",
		}),
		SnippetsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "noisenet_snippets_expired_total",
			Help: "Audio snippets deleted by the retention sweeper.",
		}),
		HeatmapDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "noisenet_heatmap_query_seconds",
			Help:    "Wall time of heatmap aggregation queries.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Rejection reason labels.
const (
	ReasonValidation    = "validation"
	ReasonRateLimited   = "rate_limited"
	ReasonRevoked       = "revoked"
	ReasonUnknownDevice = "unknown_device"
	ReasonStorage       = "storage"
)
