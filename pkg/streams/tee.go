package streams

import (
	"context"
	"errors"
	"sync"
)

// Tee splits the stream into two branches that each see every chunk.
// The parent stream is locked for good; consuming continues through the
// branches, which buffer independently, so a slow branch makes the
// engine hold chunks for it rather than stalling the fast one. Chunk
// values are shared, not cloned. Canceling one branch keeps the other
// flowing; the parent is canceled only once both branches canceled,
// with both reasons joined. Byte streams cannot be torn: their reads
// fill caller buffers, which cannot be shared.
func (s *ReadableStream[T]) Tee() (*ReadableStream[T], *ReadableStream[T], error) {
	if _, ok := any(s.ctrl).(*ByteStreamController); ok {
		return nil, nil, protocolViolation(ErrTeeByteStream)
	}
	reader, err := s.GetReader()
	if err != nil {
		return nil, nil, err
	}

	t := &teeState[T]{reader: reader, wired: make(chan struct{})}
	mk := func(i int) *ReadableStream[T] {
		return NewReadableWithConfig[T](&teeBranchSource[T]{state: t, index: i}, ReadableConfig[T]{
			Strategy: CountStrategy[T](1),
			Logger:   s.logger,
			Metrics:  s.metrics,
			Name:     s.name,
		})
	}
	b1, b2 := mk(0), mk(1)
	t.ctrls[0] = b1.ctrl.(*DefaultController[T])
	t.ctrls[1] = b2.ctrl.(*DefaultController[T])
	close(t.wired)
	return b1, b2, nil
}

// teeState is the coordination shared by both branches: one read on the
// parent at a time, fanned out to every non-canceled branch.
type teeState[T any] struct {
	reader *Reader[T]
	ctrls  [2]*DefaultController[T]

	// wired closes once both branch controllers are registered. Branch
	// pulls begin before Tee returns, so they wait for it.
	wired chan struct{}

	mu        sync.Mutex
	reading   bool
	readAgain bool
	canceled  [2]bool
	reasons   [2]error
}

// pullBranch services demand from either branch. Only one parent read
// runs at a time; demand arriving meanwhile is noted and satisfied by
// another read as soon as the current one delivers.
func (t *teeState[T]) pullBranch() error {
	<-t.wired

	t.mu.Lock()
	if t.reading {
		t.readAgain = true
		t.mu.Unlock()
		return nil
	}
	t.reading = true
	t.mu.Unlock()

	for {
		chunk, done, err := t.reader.Read(context.Background())

		if err != nil {
			t.mu.Lock()
			t.reading = false
			t.mu.Unlock()
			t.ctrls[0].Error(err)
			t.ctrls[1].Error(err)
			return nil
		}
		if done {
			t.mu.Lock()
			t.reading = false
			canceled := t.canceled
			t.mu.Unlock()
			if !canceled[0] {
				_ = t.ctrls[0].Close()
			}
			if !canceled[1] {
				_ = t.ctrls[1].Close()
			}
			return nil
		}

		t.mu.Lock()
		t.readAgain = false
		canceled := t.canceled
		t.mu.Unlock()

		if !canceled[0] {
			_ = t.ctrls[0].Enqueue(chunk)
		}
		if !canceled[1] {
			_ = t.ctrls[1].Enqueue(chunk)
		}

		t.mu.Lock()
		if !t.readAgain {
			t.reading = false
			t.mu.Unlock()
			return nil
		}
		t.mu.Unlock()
	}
}

// cancelBranch records one branch's cancellation. The parent is
// canceled once both branches have, with the two reasons joined in
// branch order.
func (t *teeState[T]) cancelBranch(index int, reason error) error {
	t.mu.Lock()
	if t.canceled[index] {
		t.mu.Unlock()
		return nil
	}
	t.canceled[index] = true
	t.reasons[index] = reason
	if !t.canceled[1-index] {
		t.mu.Unlock()
		return nil
	}
	composite := errors.Join(t.reasons[0], t.reasons[1])
	t.mu.Unlock()
	return t.reader.Cancel(context.Background(), composite)
}

type teeBranchSource[T any] struct {
	state *teeState[T]
	index int
}

// Start implements Source.
func (b *teeBranchSource[T]) Start(ctrl *DefaultController[T]) error { return nil }

// Pull implements Source.
func (b *teeBranchSource[T]) Pull(ctrl *DefaultController[T]) error {
	return b.state.pullBranch()
}

// Cancel implements Source.
func (b *teeBranchSource[T]) Cancel(reason error) error {
	return b.state.cancelBranch(b.index, reason)
}
