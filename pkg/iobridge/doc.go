/*
Package iobridge connects streams to the standard io interfaces.

Adapters run in both directions: wrap an io.Reader or io.Writer as a
stream source or sink, or expose an existing stream as an io.Reader or
io.Writer.

# Quick Start

Stream a file through the engine:

	file, _ := os.Open("input.dat")
	s := streams.NewReadableByteStream(iobridge.ReaderSource(file))

	r, _ := streams.GetBYOBReader(s)
	buf := make([]byte, 32*1024)
	for {
		n, done, err := r.Read(ctx, buf)
		if err != nil || done {
			break
		}
		process(buf[:n])
	}

Write stream output to any io.Writer:

	var out bytes.Buffer
	dst := streams.NewWritable[[]byte](iobridge.WriterSink(&out))
	_ = src.PipeTo(ctx, dst, streams.PipeOptions{})

# Zero Copy

ReaderSource fills waiting reader buffers directly when the stream has a
BYOB request outstanding, so bytes move from the io.Reader into the
consumer's buffer without an intermediate chunk.

# io Views over Streams

NewStreamReader and NewStreamWriter go the other way, so stream data can
feed APIs that want plain io interfaces:

	sr, _ := iobridge.NewStreamReader(byteStream)
	defer sr.Close()
	data, err := io.ReadAll(sr)

	sw, _ := iobridge.NewStreamWriter(writable)
	_, err = io.Copy(sw, src)
	err = sw.Close()

See example tests for more usage patterns.
*/
package iobridge
