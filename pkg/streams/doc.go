/*
Package streams provides composable data streams with explicit backpressure.

A stream moves chunks of a single element type from a producer to a consumer
through a bounded internal queue. Demand flows in the opposite direction:
every stream tracks a desired size, the configured high water mark minus the
total size of what is currently queued, and producers are asked for more
data only while that value is positive. The package offers three stream
kinds built on this model:

  - ReadableStream: a consumer-facing stream fed by a Source
  - WritableStream: a producer-facing stream draining into a Sink
  - TransformStream: a writable side and a readable side joined by a
    Transformer, with backpressure conveyed across the pair

Reading:

	stream := streams.NewReadable(streams.SourceFuncs[int]{
		PullFunc: func(ctrl *streams.DefaultController[int]) error {
			return ctrl.Enqueue(next())
		},
	})

	reader, _ := stream.GetReader()
	for {
		value, done, err := reader.Read(ctx)
		if err != nil || done {
			break
		}
		use(value)
	}

Writing:

	stream := streams.NewWritable(streams.SinkFuncs[string]{
		WriteFunc: func(chunk string, ctrl *streams.WritableController[string]) error {
			return store(chunk)
		},
	})

	writer, _ := stream.GetWriter()
	_ = writer.Write(ctx, "hello")
	_ = writer.Close(ctx)

Access to a stream is mediated by readers and writers. At most one reader
or writer holds a stream at a time; acquiring a second one fails with
ErrLocked until the current holder calls ReleaseLock. The reader and writer
expose the stream's asynchronous life cycle directly: Closed resolves or
rejects when the stream terminates, Ready (writers) tracks backpressure,
and DesiredSize reports outstanding demand.

Queue accounting is pluggable through Strategy. CountStrategy weighs every
chunk as one; ByteLengthStrategy weighs a byte slice by its length; custom
Size functions weigh anything else. A chunk whose measured size is invalid
errors the stream rather than corrupting the accounting.

Byte streams add a zero-copy read path. NewReadableByteStream builds a
ReadableStream[[]byte] whose BYOB reader lets the consumer lend its own
buffer to the stream; the source fills that buffer directly through the
controller's BYOBRequest instead of allocating chunks. Minimum fill and
element size options support typed-array style reads where only whole
elements may be delivered.

Streams compose. PipeTo drains a readable into a writable while honoring
backpressure and propagating termination in both directions; PipeThrough
routes a readable through a transform and returns the transformed readable;
Tee splits one readable into two independent branches.

Termination is uniform. Cancel (readable) and Abort (writable) discard
buffered work, notify the producer or sink, and always settle, even when
the underlying collaborator fails; collaborator failures during teardown
are logged and discarded. Errors surfaced by sources and sinks are wrapped
in StreamError to record which side failed, and misuse of the API (writing
after close, responding to a stale BYOB request) fails fast with
ProtocolError.

All exported methods are safe for concurrent use. Source, sink, and
transformer callbacks run off the stream's internal lock on a per-stream
task lane, so they may block and may call back into their controller
synchronously.
*/
package streams
