package streams

import (
	"sync"
)

// sliceSource emits a fixed sequence of chunks, one per pull, then
// closes the stream. It records pull and cancel activity.
type sliceSource[T any] struct {
	mu       sync.Mutex
	chunks   []T
	next     int
	pulls    int
	canceled bool
	reason   error
}

func (s *sliceSource[T]) Start(*DefaultController[T]) error { return nil }

func (s *sliceSource[T]) Pull(ctrl *DefaultController[T]) error {
	s.mu.Lock()
	s.pulls++
	if s.next >= len(s.chunks) {
		s.mu.Unlock()
		return ctrl.Close()
	}
	chunk := s.chunks[s.next]
	s.next++
	s.mu.Unlock()
	return ctrl.Enqueue(chunk)
}

func (s *sliceSource[T]) Cancel(reason error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canceled = true
	s.reason = reason
	return nil
}

func (s *sliceSource[T]) pullCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls
}

func (s *sliceSource[T]) cancelState() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled, s.reason
}

// recordingSink records everything the engine hands it. An optional gate
// makes Write block until the test sends on it; an optional failAt makes
// the write at that index return writeErr.
type recordingSink[T any] struct {
	gate     chan struct{}
	writeErr error
	failAt   int
	closeErr error

	mu          sync.Mutex
	chunks      []T
	closeCalls  int
	abortCalls  int
	abortReason error
}

func (k *recordingSink[T]) Start(*WritableController[T]) error { return nil }

func (k *recordingSink[T]) Write(chunk T, _ *WritableController[T]) error {
	if k.gate != nil {
		<-k.gate
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	idx := len(k.chunks)
	k.chunks = append(k.chunks, chunk)
	if k.writeErr != nil && idx == k.failAt {
		return k.writeErr
	}
	return nil
}

func (k *recordingSink[T]) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.closeCalls++
	return k.closeErr
}

func (k *recordingSink[T]) Abort(reason error) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.abortCalls++
	k.abortReason = reason
	return nil
}

func (k *recordingSink[T]) written() []T {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]T, len(k.chunks))
	copy(out, k.chunks)
	return out
}

func (k *recordingSink[T]) closes() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closeCalls
}

func (k *recordingSink[T]) aborts() (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.abortCalls, k.abortReason
}
