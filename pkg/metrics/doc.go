// Package metrics provides Prometheus instrumentation for streamflow components.
//
// This package enables monitoring and observability for streamflow's readable,
// writable, and transform streams through Prometheus metrics.
//
// # Overview
//
// The metrics package provides automatic instrumentation for:
//   - Chunk flow (chunks and bytes enqueued and delivered)
//   - Queue occupancy (current total size against the high water mark)
//   - Backpressure activations on writable streams
//   - Stream lifecycle (closed and errored transitions, error counts)
//   - Sink write latency
//
// # Quick Start
//
// Pass a registry to a stream at construction:
//
//	cfg := streams.DefaultReadableConfig[int]()
//	cfg.Metrics = metrics.DefaultRegistry
//	cfg.Name = "events"
//	stream := streams.NewReadableWithConfig(source, cfg)
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// A nil registry disables collection; streams never require one.
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	cfg.Metrics = metrics.NewRegistry(registry)
//
// # Available Metrics
//
// ## Flow Metrics
//
//   - streamflow_stream_chunks_enqueued_total: Total chunks accepted into stream queues
//   - streamflow_stream_chunks_delivered_total: Total chunks handed to readers or sinks
//   - streamflow_stream_bytes_enqueued_total: Total bytes accepted into byte stream queues
//   - streamflow_stream_bytes_delivered_total: Total bytes handed to readers
//   - streamflow_stream_queue_size: Current total size of queued chunks
//
// ## Lifecycle Metrics
//
//   - streamflow_stream_state_transitions_total: Terminal state transitions
//   - streamflow_stream_errors_total: Streams moved to the errored state
//
// ## Backpressure and Sink Metrics
//
//   - streamflow_backpressure_events_total: Backpressure activations
//   - streamflow_sink_write_duration_seconds: Time spent in sink write calls
//
// # Labels
//
// Metrics include relevant labels for filtering and aggregation:
//
//   - stream_kind: "readable" or "writable"
//   - stream_name: User-provided name for the stream instance
//   - state: Terminal state reached ("closed" or "errored")
//
// # Performance
//
// Metrics collection is designed for minimal overhead:
//   - Metrics are updated only when operations occur
//   - No background goroutines or timers
//   - Updates are skipped entirely when no registry is configured
package metrics
