package streams

import (
	"context"

	"github.com/vnykmshr/streamflow/pkg/deferred"
)

// Writer is the exclusive producer handle of a writable stream. Obtain
// one with GetWriter; while attached, all other submission paths fail
// with ErrLocked.
type Writer[T any] struct {
	stream *WritableStream[T]

	// Guarded by stream.mu.
	closed   *deferred.Deferred[deferred.Void]
	ready    *deferred.Deferred[deferred.Void]
	released bool
}

// Write submits chunk and settles once the sink has consumed it. The
// error reports a sink failure, the stream's stored error when it
// errors first, or a ProtocolError when the stream is closing or closed.
//
// If ctx expires, only the wait is abandoned: the chunk stays queued and
// is still written. Use Ready to observe backpressure before submitting.
func (w *Writer[T]) Write(ctx context.Context, chunk T) error {
	d, err := w.writeAsync(chunk)
	if err != nil {
		return err
	}
	_, err = d.Await(ctx)
	return err
}

// writeAsync queues chunk and returns its settlement handle.
func (w *Writer[T]) writeAsync(chunk T) (*deferred.Deferred[deferred.Void], error) {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return nil, protocolViolation(ErrReleased)
	}
	switch s.state {
	case WritableStateClosing:
		s.mu.Unlock()
		return nil, protocolViolation(ErrStreamClosing)
	case WritableStateClosed:
		s.mu.Unlock()
		return nil, protocolViolation(ErrStreamClosed)
	case WritableStateErroring, WritableStateErrored:
		err := s.storedError
		s.mu.Unlock()
		return nil, err
	}

	size, err := s.strategy.chunkSize(chunk)
	if err != nil {
		fns := s.startErroringLocked(err)
		s.mu.Unlock()
		runAll(fns)
		return nil, err
	}

	req := writeRequest[T]{chunk: chunk, completion: deferred.New[deferred.Void]()}
	s.queue.push(req, size)
	if s.metrics != nil {
		s.metrics.ChunksEnqueued.WithLabelValues("writable", s.name).Inc()
		s.metrics.QueueDepth.WithLabelValues("writable", s.name).Set(s.queue.total())
	}
	fns := s.updateBackpressureLocked()
	s.schedulePumpLocked()
	s.mu.Unlock()
	runAll(fns)
	return req.completion, nil
}

// Close flushes queued writes and runs the sink's Close. See
// WritableStream.Close.
func (w *Writer[T]) Close(ctx context.Context) error {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return protocolViolation(ErrReleased)
	}
	d, fns, err := s.closeLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	runAll(fns)
	_, err = d.Await(ctx)
	return err
}

// Abort discards queued writes and tears the sink down. See
// WritableStream.Abort for the folding and settlement contract.
func (w *Writer[T]) Abort(ctx context.Context, reason error) error {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return protocolViolation(ErrReleased)
	}
	d, fns := s.abortLocked(reason)
	s.mu.Unlock()
	runAll(fns)
	_, err := d.Await(ctx)
	return err
}

// Ready returns the current backpressure signal: it is pending while the
// stream asks producers to hold off and resolves when writes are wanted
// again. It rejects once the stream errors.
func (w *Writer[T]) Ready() *deferred.Deferred[deferred.Void] {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	return w.ready
}

// Closed returns a deferred that resolves when the stream closes and
// rejects when it errors or the writer is released.
func (w *Writer[T]) Closed() *deferred.Deferred[deferred.Void] {
	return w.closed
}

// DesiredSize returns the stream's remaining appetite: the high-water
// mark minus the size of queued writes. Zero or negative asserts
// backpressure. It errors once the stream errors or the writer is
// released; a closed stream reports zero.
func (w *Writer[T]) DesiredSize() (float64, error) {
	s := w.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.released {
		return 0, protocolViolation(ErrReleased)
	}
	switch s.state {
	case WritableStateErroring, WritableStateErrored:
		return 0, s.storedError
	case WritableStateClosed:
		return 0, nil
	}
	return s.desiredSizeLocked(), nil
}

// ReleaseLock detaches the writer. Writes already queued still reach the
// sink; the ready and closed deferreds reject with ErrReleased, and a
// new writer may attach. Releasing twice is a no-op.
func (w *Writer[T]) ReleaseLock() {
	s := w.stream
	s.mu.Lock()
	if w.released {
		s.mu.Unlock()
		return
	}
	w.released = true
	s.writer = nil
	ready, closed := w.ready, w.closed
	s.mu.Unlock()

	ready.Reject(protocolViolation(ErrReleased))
	closed.Reject(protocolViolation(ErrReleased))
}
