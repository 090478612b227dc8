// Package metrics provides Prometheus instrumentation for streamflow components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for streamflow components.
type Registry struct {
	// Flow Metrics
	ChunksEnqueued  *prometheus.CounterVec
	ChunksDelivered *prometheus.CounterVec
	BytesEnqueued   *prometheus.CounterVec
	BytesDelivered  *prometheus.CounterVec
	QueueDepth      *prometheus.GaugeVec

	// Lifecycle Metrics
	StreamState  *prometheus.CounterVec
	StreamErrors *prometheus.CounterVec

	// Backpressure Metrics
	BackpressureEvents *prometheus.CounterVec

	// Sink Metrics
	WriteDuration *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by streamflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Flow Metrics
		ChunksEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "chunks_enqueued_total",
				Help:      "Total number of chunks accepted into stream queues",
			},
			[]string{"stream_kind", "stream_name"},
		),

		ChunksDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "chunks_delivered_total",
				Help:      "Total number of chunks handed to readers or sinks",
			},
			[]string{"stream_kind", "stream_name"},
		),

		BytesEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "bytes_enqueued_total",
				Help:      "Total bytes accepted into byte stream queues",
			},
			[]string{"stream_kind", "stream_name"},
		),

		BytesDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "bytes_delivered_total",
				Help:      "Total bytes handed to readers",
			},
			[]string{"stream_kind", "stream_name"},
		),

		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "queue_size",
				Help:      "Current total size of queued chunks",
			},
			[]string{"stream_kind", "stream_name"},
		),

		// Lifecycle Metrics
		StreamState: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "state_transitions_total",
				Help:      "Total number of terminal state transitions",
			},
			[]string{"stream_kind", "stream_name", "state"},
		),

		StreamErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "stream",
				Name:      "errors_total",
				Help:      "Total number of streams moved to the errored state",
			},
			[]string{"stream_kind", "stream_name"},
		),

		// Backpressure Metrics
		BackpressureEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streamflow",
				Subsystem: "backpressure",
				Name:      "events_total",
				Help:      "Total number of backpressure activations",
			},
			[]string{"stream_kind", "stream_name"},
		),

		// Sink Metrics
		WriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "streamflow",
				Subsystem: "sink",
				Name:      "write_duration_seconds",
				Help:      "Time spent in sink write calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stream_name"},
		),
	}
}
