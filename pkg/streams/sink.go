package streams

// Sink consumes chunks from a writable stream. The engine invokes Start,
// Write and Close off the stream's internal lock, strictly one at a time;
// Write calls arrive in submission order and are never coalesced.
type Sink[T any] interface {
	// Start is called exactly once, before any Write. Returning an
	// error puts the stream into the errored state.
	Start(ctrl *WritableController[T]) error

	// Write consumes one chunk. It may block; no other sink method runs
	// concurrently. Returning an error errors the stream and rejects
	// the chunk's write completion. Long writes should watch
	// ctrl.ErrorSignal to notice an abort in progress.
	Write(chunk T, ctrl *WritableController[T]) error

	// Close flushes after the final write. Returning an error errors
	// the stream instead of closing it.
	Close() error

	// Abort tears the sink down after an abort or error. reason is the
	// abort reason or the stream's error. Best effort: a returned error
	// is logged and discarded; the consumer's abort always succeeds.
	Abort(reason error) error
}

// SinkFuncs adapts plain functions to the Sink interface. Nil fields act
// as immediate successes.
type SinkFuncs[T any] struct {
	StartFunc func(ctrl *WritableController[T]) error
	WriteFunc func(chunk T, ctrl *WritableController[T]) error
	CloseFunc func() error
	AbortFunc func(reason error) error
}

// Start implements Sink.
func (s SinkFuncs[T]) Start(ctrl *WritableController[T]) error {
	if s.StartFunc == nil {
		return nil
	}
	return s.StartFunc(ctrl)
}

// Write implements Sink.
func (s SinkFuncs[T]) Write(chunk T, ctrl *WritableController[T]) error {
	if s.WriteFunc == nil {
		return nil
	}
	return s.WriteFunc(chunk, ctrl)
}

// Close implements Sink.
func (s SinkFuncs[T]) Close() error {
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc()
}

// Abort implements Sink.
func (s SinkFuncs[T]) Abort(reason error) error {
	if s.AbortFunc == nil {
		return nil
	}
	return s.AbortFunc(reason)
}
