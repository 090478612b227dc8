/*
Package streamflow provides composable data streams for Go with explicit
backpressure, cancellation, and zero-copy byte reads.

Streams (pkg/streams):
  - readable: Pull-based sources with internal queuing and tee
  - writable: Sinks with high water marks and backpressure signaling
  - transform: Readable/writable pairs for staged processing
  - byte streams: BYOB readers filling caller-owned buffers

Adapters (pkg/iobridge, pkg/redistream, pkg/cronsource):
  - iobridge: io.Reader and io.Writer endpoints for byte streams
  - redistream: Redis lists as stream sources and sinks
  - cronsource: Cron schedules as tick streams

Support (pkg/metrics, pkg/taskq, pkg/deferred):
  - metrics: Prometheus instrumentation for stream activity
  - taskq: Serialized task lanes driving stream engines
  - deferred: Settled-exactly-once results with reactions

Example usage:

	import "github.com/vnykmshr/streamflow/pkg/streams"

	src := streams.NewReadable[int](source)
	dst := streams.NewWritable[int](sink)

	if err := src.PipeTo(ctx, dst, streams.PipeOptions{}); err != nil {
		log.Fatal(err)
	}
*/
package streamflow
