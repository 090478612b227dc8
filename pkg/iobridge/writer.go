package iobridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/vnykmshr/streamflow/pkg/streams"
)

// ErrWriterClosed is returned when writing to a closed StreamWriter.
var ErrWriterClosed = errors.New("stream writer is closed")

// SinkConfig holds configuration options for WriterSink.
type SinkConfig struct {
	// CloseUnderlying closes the wrapped io.Writer when the stream closes
	// or aborts, if it implements io.Closer.
	// Default: true
	CloseUnderlying bool
}

// DefaultSinkConfig returns a default configuration.
func DefaultSinkConfig() SinkConfig {
	return SinkConfig{CloseUnderlying: true}
}

// WriterSink adapts an io.Writer to a stream sink with default
// configuration. Each stream chunk becomes one Write call.
func WriterSink(w io.Writer) streams.Sink[[]byte] {
	return WriterSinkWithConfig(w, DefaultSinkConfig())
}

// WriterSinkWithConfig adapts an io.Writer to a stream sink with the
// specified configuration.
func WriterSinkWithConfig(w io.Writer, config SinkConfig) streams.Sink[[]byte] {
	return &writerSink{w: w, config: config}
}

type writerSink struct {
	w      io.Writer
	config SinkConfig
}

// Start implements streams.Sink.
func (s *writerSink) Start(*streams.WritableController[[]byte]) error { return nil }

// Write implements streams.Sink.
func (s *writerSink) Write(chunk []byte, _ *streams.WritableController[[]byte]) error {
	_, err := s.w.Write(chunk)
	return err
}

// Close implements streams.Sink.
func (s *writerSink) Close() error { return s.closeUnderlying() }

// Abort implements streams.Sink.
func (s *writerSink) Abort(error) error { return s.closeUnderlying() }

func (s *writerSink) closeUnderlying() error {
	if !s.config.CloseUnderlying {
		return nil
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StreamWriter exposes a writable stream as an io.WriteCloser. Writes
// block while the stream asserts backpressure, so io.Copy into a
// StreamWriter runs at the pace the stream's sink sustains.
type StreamWriter struct {
	writer *streams.Writer[[]byte]

	mu     sync.Mutex
	closed bool
}

// NewStreamWriter locks s and returns an io.WriteCloser view over it. It
// fails if the stream is already locked.
func NewStreamWriter(s *streams.WritableStream[[]byte]) (*StreamWriter, error) {
	w, err := s.GetWriter()
	if err != nil {
		return nil, err
	}
	return &StreamWriter{writer: w}, nil
}

// Write implements io.Writer. The stream takes ownership of its chunks,
// so p is copied and stays the caller's to reuse.
func (w *StreamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrWriterClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)
	if err := w.writer.Write(context.Background(), chunk); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer by closing the stream, flushing writes
// already accepted.
func (w *StreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.writer.Close(context.Background())
}

// CloseWithError aborts the stream with reason instead of closing it.
// Queued writes are rejected and the sink is torn down.
func (w *StreamWriter) CloseWithError(reason error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.writer.Abort(context.Background(), reason)
}
