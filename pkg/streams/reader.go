package streams

import (
	"context"

	"github.com/vnykmshr/streamflow/pkg/deferred"
)

// Reader is the exclusive consumer handle of a readable stream. Obtain
// one with GetReader; while attached, all other consumption paths fail
// with ErrLocked.
type Reader[T any] struct {
	stream *ReadableStream[T]

	// Guarded by stream.mu.
	closed       *deferred.Deferred[deferred.Void]
	readRequests []*deferred.Deferred[readOutcome[T]]
	released     bool
}

// Read returns the next chunk. done is true once the stream has closed
// and the queue is exhausted; afterwards Read keeps returning done. A
// stream error is returned as err, as is ErrReleased after ReleaseLock.
//
// If ctx expires first, the pending request is withdrawn and ctx's error
// returned; a chunk that was already being delivered in that instant is
// still returned rather than dropped.
func (r *Reader[T]) Read(ctx context.Context) (T, bool, error) {
	req := r.readAsync()
	out, err := req.Await(ctx)
	if err == nil {
		return out.value, out.done, out.err
	}

	s := r.stream
	s.mu.Lock()
	withdrawn := false
	for i, q := range r.readRequests {
		if q == req {
			r.readRequests = append(r.readRequests[:i], r.readRequests[i+1:]...)
			withdrawn = true
			break
		}
	}
	s.mu.Unlock()
	if withdrawn {
		var zero T
		return zero, false, err
	}

	// The request was already taken for delivery; settlement is imminent.
	out, _ = req.Await(context.Background())
	return out.value, out.done, out.err
}

// readAsync issues a read request and returns its settlement handle.
func (r *Reader[T]) readAsync() *deferred.Deferred[readOutcome[T]] {
	s := r.stream
	s.mu.Lock()
	if r.released {
		s.mu.Unlock()
		return deferred.ResolvedWith(readOutcome[T]{err: protocolViolation(ErrReleased)})
	}
	if out, ok := s.terminalReadLocked(); ok {
		s.mu.Unlock()
		return deferred.ResolvedWith(out)
	}
	req := deferred.New[readOutcome[T]]()
	fns := s.ctrl.readLocked(req)
	s.mu.Unlock()
	runAll(fns)
	return req
}

// Closed returns a deferred that resolves when the stream closes and
// rejects when it errors or the reader is released.
func (r *Reader[T]) Closed() *deferred.Deferred[deferred.Void] {
	return r.closed
}

// Cancel cancels the stream through the reader's lock. See
// ReadableStream.Cancel for the settlement contract.
func (r *Reader[T]) Cancel(ctx context.Context, reason error) error {
	s := r.stream
	s.mu.Lock()
	if r.released {
		s.mu.Unlock()
		return protocolViolation(ErrReleased)
	}
	d, fns := s.cancelLocked(reason)
	s.mu.Unlock()
	runAll(fns)
	_, err := d.Await(ctx)
	return err
}

// ReleaseLock detaches the reader. Parked reads settle with ErrReleased
// and the closed deferred rejects; the stream itself is unaffected and a
// new reader may attach. Releasing twice is a no-op.
func (r *Reader[T]) ReleaseLock() {
	s := r.stream
	s.mu.Lock()
	if r.released {
		s.mu.Unlock()
		return
	}
	r.released = true
	s.reader = nil
	reqs := r.readRequests
	r.readRequests = nil
	s.ctrl.releaseLocked()
	closed := r.closed
	s.mu.Unlock()

	for _, req := range reqs {
		req.Resolve(readOutcome[T]{err: protocolViolation(ErrReleased)})
	}
	closed.Reject(protocolViolation(ErrReleased))
}
