package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this test
	testRegistry := prometheus.NewRegistry()
	registry := NewRegistry(testRegistry)

	// Example of accessing metrics
	registry.ChunksEnqueued.WithLabelValues("readable", "events").Add(10)
	registry.ChunksDelivered.WithLabelValues("readable", "events").Add(8)
	registry.QueueDepth.WithLabelValues("readable", "events").Set(2)

	fmt.Println("Metrics updated successfully")

	// Output:
	// Metrics updated successfully
}

// Example_customRegistry demonstrates using a custom Prometheus registry.
func Example_customRegistry() {
	// Create a custom registry
	customRegistry := prometheus.NewRegistry()

	config := Config{
		Enabled:  true,
		Registry: customRegistry,
	}

	registry := config.Build()

	// Test the registry
	registry.BackpressureEvents.WithLabelValues("writable", "uploads").Inc()
	registry.WriteDuration.WithLabelValues("uploads").Observe(0.004)

	fmt.Printf("Custom registry enabled: %v\n", config.Enabled)
	fmt.Println("Custom registry configured with streamflow metrics")

	// Output:
	// Custom registry enabled: true
	// Custom registry configured with streamflow metrics
}

// Example_metricsServer demonstrates setting up a metrics HTTP server.
func Example_metricsServer() {
	// In a real application, you would start a metrics server:
	//
	// http.Handle("/metrics", promhttp.Handler())
	// log.Fatal(http.ListenAndServe(":8080", nil))
	//
	// Available metrics would include:
	// - streamflow_stream_chunks_enqueued_total{stream_kind="readable",stream_name="events"}
	// - streamflow_stream_queue_size{stream_kind="writable",stream_name="uploads"}
	// - streamflow_backpressure_events_total{stream_kind="writable",stream_name="uploads"}
	// - streamflow_sink_write_duration_seconds{stream_name="uploads"}
	// And more...

	fmt.Println("Metrics available at /metrics endpoint")

	// Output:
	// Metrics available at /metrics endpoint
}

// Example_configuration demonstrates different metrics configurations.
func Example_configuration() {
	// Default configuration
	defaultConfig := DefaultConfig()
	fmt.Printf("Default enabled: %v\n", defaultConfig.Enabled)

	// Disabled configuration yields a nil registry
	disabledConfig := Config{Enabled: false}
	fmt.Printf("Disabled registry is nil: %v\n", disabledConfig.Build() == nil)

	// Output:
	// Default enabled: true
	// Disabled registry is nil: true
}
