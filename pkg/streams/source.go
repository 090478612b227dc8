package streams

// Source produces chunks for a readable stream. The engine invokes the
// methods off the stream's internal lock; they may block and may call the
// controller synchronously.
type Source[T any] interface {
	// Start is called exactly once, before any Pull. It may enqueue
	// initial chunks. Returning an error puts the stream into the
	// errored state.
	Start(ctrl *DefaultController[T]) error

	// Pull is called whenever the stream wants more data: the queue is
	// below its high-water mark or a read is waiting. It should attempt
	// to enqueue at least one chunk before returning. At most one Pull
	// is in flight at a time; returning an error errors the stream.
	Pull(ctrl *DefaultController[T]) error

	// Cancel tells the source the consumer has lost interest. reason is
	// the consumer's cancellation reason, possibly nil. The cancellation
	// is best effort: a returned error is logged and discarded, never
	// surfaced to the canceling consumer.
	Cancel(reason error) error
}

// SourceFuncs adapts plain functions to the Source interface. Nil fields
// act as immediate successes.
type SourceFuncs[T any] struct {
	StartFunc  func(ctrl *DefaultController[T]) error
	PullFunc   func(ctrl *DefaultController[T]) error
	CancelFunc func(reason error) error
}

// Start implements Source.
func (s SourceFuncs[T]) Start(ctrl *DefaultController[T]) error {
	if s.StartFunc == nil {
		return nil
	}
	return s.StartFunc(ctrl)
}

// Pull implements Source.
func (s SourceFuncs[T]) Pull(ctrl *DefaultController[T]) error {
	if s.PullFunc == nil {
		return nil
	}
	return s.PullFunc(ctrl)
}

// Cancel implements Source.
func (s SourceFuncs[T]) Cancel(reason error) error {
	if s.CancelFunc == nil {
		return nil
	}
	return s.CancelFunc(reason)
}

// ByteSource is the Source counterpart for readable byte streams. It is
// handed a ByteStreamController, whose BYOBRequest exposes pending
// consumer buffers for zero-copy fills.
type ByteSource interface {
	Start(ctrl *ByteStreamController) error
	Pull(ctrl *ByteStreamController) error
	Cancel(reason error) error
}

// ByteSourceFuncs adapts plain functions to the ByteSource interface.
// Nil fields act as immediate successes.
type ByteSourceFuncs struct {
	StartFunc  func(ctrl *ByteStreamController) error
	PullFunc   func(ctrl *ByteStreamController) error
	CancelFunc func(reason error) error
}

// Start implements ByteSource.
func (s ByteSourceFuncs) Start(ctrl *ByteStreamController) error {
	if s.StartFunc == nil {
		return nil
	}
	return s.StartFunc(ctrl)
}

// Pull implements ByteSource.
func (s ByteSourceFuncs) Pull(ctrl *ByteStreamController) error {
	if s.PullFunc == nil {
		return nil
	}
	return s.PullFunc(ctrl)
}

// Cancel implements ByteSource.
func (s ByteSourceFuncs) Cancel(reason error) error {
	if s.CancelFunc == nil {
		return nil
	}
	return s.CancelFunc(reason)
}
