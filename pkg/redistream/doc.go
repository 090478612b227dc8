/*
Package redistream moves stream chunks through a Redis list.

A ListSink pushes every chunk onto the tail of a list; a ListSource pops
chunks off the head. Producer and consumer processes sharing a Redis
instance get a durable, ordered byte channel between them, with the
stream engine's backpressure on both ends.

# Quick Start

Producer:

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	sink, err := redistream.ListSink(redistream.Config{
		Client: rdb,
		Key:    "jobs:payloads",
	})
	dst := streams.NewWritable[[]byte](sink)
	_ = src.PipeTo(ctx, dst, streams.PipeOptions{})

Consumer:

	source, err := redistream.ListSource(redistream.Config{
		Client: rdb,
		Key:    "jobs:payloads",
	})
	s := streams.NewReadableByteStream(source)
	r, _ := s.GetReader()
	for {
		chunk, _, err := r.Read(ctx)
		if err != nil {
			break
		}
		handle(chunk)
	}

# Semantics

Chunks are opaque byte payloads; no framing or encoding is imposed. The
source blocks server-side in BlockTimeout slices, so canceling the
stream takes effect within one slice. A list source never closes on its
own: an empty list means "no data yet", not end of stream. Cancel the
stream to stop consuming.

The Redis client is injected and stays owned by the caller; closing it
is the caller's job.
*/
package redistream
