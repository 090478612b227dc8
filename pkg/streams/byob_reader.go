package streams

import (
	"context"

	"github.com/vnykmshr/streamflow/pkg/deferred"
)

// BYOBReader is the exclusive bring-your-own-buffer consumer handle of a
// readable byte stream. The stream fills buffers the caller supplies,
// avoiding engine-side allocation on the hot path.
type BYOBReader struct {
	stream *ReadableStream[[]byte]
	ctrl   *ByteStreamController

	// Guarded by stream.mu.
	closed           *deferred.Deferred[deferred.Void]
	readIntoRequests []*deferred.Deferred[readIntoOutcome]
	released         bool
}

// GetBYOBReader attaches an exclusive BYOB reader to a readable byte
// stream. It fails with ErrNotByteStream on a default stream and with
// ErrLocked while another reader is attached.
func GetBYOBReader(s *ReadableStream[[]byte]) (*BYOBReader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctrl, ok := s.ctrl.(*ByteStreamController)
	if !ok {
		return nil, protocolViolation(ErrNotByteStream)
	}
	if s.lockedLocked() {
		return nil, protocolViolation(ErrLocked)
	}

	b := &BYOBReader{stream: s, ctrl: ctrl}
	switch s.state {
	case ReadableStateReadable:
		b.closed = deferred.New[deferred.Void]()
	case ReadableStateClosed:
		b.closed = deferred.ResolvedWith(deferred.Void{})
	case ReadableStateErrored:
		b.closed = deferred.RejectedWith[deferred.Void](s.storedError)
	}
	s.byobReader = b
	return b, nil
}

// ReadIntoOptions tunes a BYOB read.
type ReadIntoOptions struct {
	// MinBytes defers delivery until at least this many bytes have been
	// filled. It must be a multiple of ElementSize and no larger than the
	// buffer. Zero means one element.
	MinBytes int

	// ElementSize makes delivery stop only on multiples of this size.
	// Zero or one means plain bytes.
	ElementSize int
}

// Read fills p with at least one byte. n reports how many bytes were
// written into p; done is true once the stream has closed and all bytes
// are drained. The buffer is on loan to the stream until the read
// settles and must not be touched meanwhile.
func (b *BYOBReader) Read(ctx context.Context, p []byte) (int, bool, error) {
	return b.ReadWithOptions(ctx, p, ReadIntoOptions{})
}

// ReadWithOptions fills p subject to opts. Delivery waits for MinBytes
// and lands on an ElementSize boundary; a stream close that would strand
// a partial element errors the stream with ErrSizeMismatch instead.
//
// If ctx expires first, the read is withdrawn and ctx's error returned.
// A fill already in progress keeps p on loan until the source finishes
// its element; the bytes are then queued for the next read.
func (b *BYOBReader) ReadWithOptions(ctx context.Context, p []byte, opts ReadIntoOptions) (int, bool, error) {
	elementSize := opts.ElementSize
	if elementSize <= 0 {
		elementSize = 1
	}
	minimumFill := opts.MinBytes
	if minimumFill <= 0 {
		minimumFill = elementSize
	}
	switch {
	case len(p) == 0,
		elementSize > len(p),
		minimumFill > len(p),
		minimumFill%elementSize != 0:
		return 0, false, protocolViolation(ErrInvalidReadInto)
	}

	req := b.readIntoAsync(p, minimumFill, elementSize)
	out, err := req.Await(ctx)
	if err == nil {
		return out.n, out.done, out.err
	}

	if b.withdraw(req) {
		return 0, false, err
	}

	// The request was already taken for delivery; settlement is imminent.
	out, _ = req.Await(context.Background())
	return out.n, out.done, out.err
}

// readIntoAsync issues a BYOB read request and returns its settlement
// handle.
func (b *BYOBReader) readIntoAsync(p []byte, minimumFill, elementSize int) *deferred.Deferred[readIntoOutcome] {
	s := b.stream
	s.mu.Lock()
	if b.released {
		s.mu.Unlock()
		return deferred.ResolvedWith(readIntoOutcome{err: protocolViolation(ErrReleased)})
	}
	switch s.state {
	case ReadableStateClosed:
		s.mu.Unlock()
		return deferred.ResolvedWith(readIntoOutcome{done: true})
	case ReadableStateErrored:
		err := s.storedError
		s.mu.Unlock()
		return deferred.ResolvedWith(readIntoOutcome{err: err})
	}
	req := deferred.New[readIntoOutcome]()
	fns := b.ctrl.readIntoLocked(p, minimumFill, elementSize, req)
	s.mu.Unlock()
	runAll(fns)
	return req
}

// withdraw removes a parked read request and its descriptor after ctx
// expiry. The head descriptor may already be exposed to the source, so
// it is orphaned in place rather than removed; its buffer stays on loan.
func (b *BYOBReader) withdraw(req *deferred.Deferred[readIntoOutcome]) bool {
	s := b.stream
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, q := range b.readIntoRequests {
		if q == req {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	b.readIntoRequests = append(b.readIntoRequests[:idx], b.readIntoRequests[idx+1:]...)

	c := b.ctrl
	j := 0
	for k, d := range c.pendingPullIntos {
		if d.readerType != readerKindBYOB {
			continue
		}
		if j != idx {
			j++
			continue
		}
		if k == 0 {
			d.readerType = readerKindNone
		} else {
			c.pendingPullIntos = append(c.pendingPullIntos[:k], c.pendingPullIntos[k+1:]...)
		}
		break
	}
	return true
}

// Closed returns a deferred that resolves when the stream closes and
// rejects when it errors or the reader is released.
func (b *BYOBReader) Closed() *deferred.Deferred[deferred.Void] {
	return b.closed
}

// Cancel cancels the stream through the reader's lock. Parked BYOB reads
// settle as done with no bytes. See ReadableStream.Cancel for the
// settlement contract.
func (b *BYOBReader) Cancel(ctx context.Context, reason error) error {
	s := b.stream
	s.mu.Lock()
	if b.released {
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
// new reader may attach. A buffer mid-fill at release time stays on loan
// to the stream until the source finishes its element; the bytes are
// then queued for the next reader. Releasing twice is a no-op.
func (b *BYOBReader) ReleaseLock() {
	s := b.stream
	s.mu.Lock()
	if b.released {
		s.mu.Unlock()
		return
	}
	b.released = true
	s.byobReader = nil
	reqs := b.readIntoRequests
	b.readIntoRequests = nil
	s.ctrl.releaseLocked()
	closed := b.closed
	s.mu.Unlock()

	for _, req := range reqs {
		req.Resolve(readIntoOutcome{err: protocolViolation(ErrReleased)})
	}
	closed.Reject(protocolViolation(ErrReleased))
}
