package streams

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vnykmshr/streamflow/pkg/deferred"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/taskq"
)

// WritableState is the lifecycle state of a writable stream.
type WritableState int

const (
	// WritableStateWritable accepts writes.
	WritableStateWritable WritableState = iota

	// WritableStateClosing rejects new writes while queued ones flush;
	// entered by Close.
	WritableStateClosing

	// WritableStateClosed is terminal: the sink's Close has completed.
	WritableStateClosed

	// WritableStateErroring drains an in-flight sink operation before the
	// stream settles into Errored.
	WritableStateErroring

	// WritableStateErrored is terminal: all writes reject with the stored
	// error.
	WritableStateErrored
)

func (s WritableState) String() string {
	switch s {
	case WritableStateWritable:
		return "writable"
	case WritableStateClosing:
		return "closing"
	case WritableStateClosed:
		return "closed"
	case WritableStateErroring:
		return "erroring"
	case WritableStateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// WritableConfig configures a writable stream.
type WritableConfig[T any] struct {
	// Strategy sets the high-water mark and per-chunk sizing.
	Strategy Strategy[T]

	// OnBackpressure is called on each backpressure toggle, off the
	// stream's lock, with true when backpressure engages.
	OnBackpressure func(engaged bool)

	// Logger receives engine diagnostics (discarded abort failures).
	// Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics, when set, instruments the stream. Name labels the series.
	Metrics *metrics.Registry
	Name    string

	// Lane overrides the stream's serial task lane.
	Lane taskq.Queue
}

// DefaultWritableConfig returns a default configuration: count-based
// sizing with a high-water mark of 1.
func DefaultWritableConfig[T any]() WritableConfig[T] {
	return WritableConfig[T]{Strategy: CountStrategy[T](1)}
}

// writeRequest is one queued write and its settlement handle.
type writeRequest[T any] struct {
	chunk      T
	completion *deferred.Deferred[deferred.Void]
}

// pendingAbortRequest folds concurrent aborts into one sink teardown.
type pendingAbortRequest struct {
	reason     error
	completion *deferred.Deferred[deferred.Void]
}

// WritableStream is a destination for chunks with internal queuing and
// backpressure. The sink sees at most one operation at a time; writes
// run in submission order. At most one Writer is attached at a time.
type WritableStream[T any] struct {
	mu          sync.Mutex
	state       WritableState
	storedError error

	sink       Sink[T]
	controller *WritableController[T]
	queue      sizedQueue[writeRequest[T]]
	strategy   Strategy[T]

	highWaterMark float64
	backpressure  bool

	started       bool
	inFlight      bool
	pumpScheduled bool

	writer       *Writer[T]
	closeDone    *deferred.Deferred[deferred.Void]
	pendingAbort *pendingAbortRequest
	erroringCh   chan struct{}

	onBackpressure func(bool)

	lane    taskq.Queue
	logger  *slog.Logger
	metrics *metrics.Registry
	name    string
}

// NewWritable creates a writable stream over sink with the default
// configuration.
func NewWritable[T any](sink Sink[T]) *WritableStream[T] {
	return NewWritableWithConfig(sink, DefaultWritableConfig[T]())
}

// NewWritableWithConfig creates a writable stream over sink with the
// specified configuration.
func NewWritableWithConfig[T any](sink Sink[T], config WritableConfig[T]) *WritableStream[T] {
	lane := config.Lane
	if lane == nil {
		lane = taskq.New()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hwm := normalizedHighWaterMark(config.Strategy.HighWaterMark)
	s := &WritableStream[T]{
		state:          WritableStateWritable,
		sink:           sink,
		strategy:       config.Strategy,
		highWaterMark:  hwm,
		backpressure:   hwm <= 0,
		erroringCh:     make(chan struct{}),
		onBackpressure: config.OnBackpressure,
		lane:           lane,
		logger:         logger,
		metrics:        config.Metrics,
		name:           config.Name,
	}
	s.controller = &WritableController[T]{stream: s}
	s.lane.Post(s.startTask)
	return s
}

// State returns the stream's lifecycle state.
func (s *WritableStream[T]) State() WritableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the stream's error, or nil while the stream has not errored.
func (s *WritableStream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedError
}

// Locked reports whether a writer is currently attached.
func (s *WritableStream[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// GetWriter attaches an exclusive writer. It fails with ErrLocked if a
// writer is already attached.
func (s *WritableStream[T]) GetWriter() (*Writer[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		return nil, protocolViolation(ErrLocked)
	}

	w := &Writer[T]{stream: s}
	switch s.state {
	case WritableStateWritable:
		w.closed = deferred.New[deferred.Void]()
		if s.backpressure {
			w.ready = deferred.New[deferred.Void]()
		} else {
			w.ready = deferred.ResolvedWith(deferred.Void{})
		}
	case WritableStateClosing, WritableStateErroring:
		w.closed = deferred.New[deferred.Void]()
		if s.state == WritableStateErroring {
			w.ready = deferred.RejectedWith[deferred.Void](s.storedError)
		} else {
			w.ready = deferred.ResolvedWith(deferred.Void{})
		}
	case WritableStateClosed:
		w.closed = deferred.ResolvedWith(deferred.Void{})
		w.ready = deferred.ResolvedWith(deferred.Void{})
	case WritableStateErrored:
		w.closed = deferred.RejectedWith[deferred.Void](s.storedError)
		w.ready = deferred.RejectedWith[deferred.Void](s.storedError)
	}
	s.writer = w
	return w, nil
}

// Close flushes queued writes, runs the sink's Close, and settles once
// the stream is closed. Valid only while the stream is writable and
// unlocked; use the writer's Close while a writer is attached.
func (s *WritableStream[T]) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.writer != nil {
		s.mu.Unlock()
		return protocolViolation(ErrLocked)
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

// Abort discards queued writes and tears the sink down. Concurrent
// aborts fold into one sink teardown sharing a completion; the sink's
// own failure is logged and discarded, so the completion always
// resolves. Valid only while unlocked; use the writer's Abort while a
// writer is attached.
func (s *WritableStream[T]) Abort(ctx context.Context, reason error) error {
	s.mu.Lock()
	if s.writer != nil {
		s.mu.Unlock()
		return protocolViolation(ErrLocked)
	}
	d, fns := s.abortLocked(reason)
	s.mu.Unlock()
	runAll(fns)
	_, err := d.Await(ctx)
	return err
}

func (s *WritableStream[T]) closeLocked() (*deferred.Deferred[deferred.Void], []func(), error) {
	switch s.state {
	case WritableStateClosing:
		return nil, nil, protocolViolation(ErrStreamClosing)
	case WritableStateClosed:
		return nil, nil, protocolViolation(ErrStreamClosed)
	case WritableStateErroring, WritableStateErrored:
		return nil, nil, s.storedError
	}

	s.state = WritableStateClosing
	s.closeDone = deferred.New[deferred.Void]()

	// No further writes can arrive, so waiting for readiness is moot.
	var fns []func()
	if w := s.writer; w != nil && s.backpressure && !w.ready.Settled() {
		ready := w.ready
		fns = append(fns, func() { ready.Resolve(deferred.Void{}) })
	}
	s.schedulePumpLocked()
	return s.closeDone, fns, nil
}

func (s *WritableStream[T]) abortLocked(reason error) (*deferred.Deferred[deferred.Void], []func()) {
	if s.state == WritableStateClosed || s.state == WritableStateErrored {
		return deferred.ResolvedWith(deferred.Void{}), nil
	}
	if s.pendingAbort != nil {
		return s.pendingAbort.completion, nil
	}

	if reason == nil {
		reason = ErrAborted
	}
	pa := &pendingAbortRequest{reason: reason, completion: deferred.New[deferred.Void]()}
	s.pendingAbort = pa
	fns := s.startErroringLocked(reason)
	s.schedulePumpLocked()
	return pa.completion, fns
}

// startErroringLocked moves the stream to Erroring: the ready signal
// rejects and the pump finishes the transition once in-flight sink work
// drains. Queued writes stay put until then so the in-flight entry is
// accounted consistently. No-op outside Writable and Closing.
func (s *WritableStream[T]) startErroringLocked(e error) []func() {
	if s.state != WritableStateWritable && s.state != WritableStateClosing {
		return nil
	}
	s.state = WritableStateErroring
	s.storedError = e
	close(s.erroringCh)

	var fns []func()
	if w := s.writer; w != nil {
		if w.ready.Settled() {
			w.ready = deferred.RejectedWith[deferred.Void](e)
		} else {
			ready := w.ready
			fns = append(fns, func() { ready.Reject(e) })
		}
	}
	if s.metrics != nil {
		s.metrics.StreamErrors.WithLabelValues("writable", s.name).Inc()
	}
	s.schedulePumpLocked()
	return fns
}

func (s *WritableStream[T]) schedulePumpLocked() {
	if s.pumpScheduled {
		return
	}
	s.pumpScheduled = true
	s.lane.Post(s.pumpTask)
}

// startTask runs the sink's Start hook on the stream lane.
func (s *WritableStream[T]) startTask() {
	err := s.sink.Start(s.controller)

	s.mu.Lock()
	s.started = true
	var fns []func()
	if err != nil {
		fns = s.startErroringLocked(&StreamError{Kind: SinkError, Err: err})
	}
	s.schedulePumpLocked()
	s.mu.Unlock()
	runAll(fns)
}

// pumpTask advances the stream by one sink operation. It reschedules
// itself after each completion, so the sink sees strictly serial calls.
func (s *WritableStream[T]) pumpTask() {
	s.mu.Lock()
	s.pumpScheduled = false
	if !s.started || s.inFlight {
		s.mu.Unlock()
		return
	}
	switch s.state {
	case WritableStateErroring:
		s.finishErroringStep()
		return
	case WritableStateWritable, WritableStateClosing:
		if s.queue.len() > 0 {
			s.writeStep()
			return
		}
		if s.state == WritableStateClosing {
			s.closeStep()
			return
		}
	}
	s.mu.Unlock()
}

// writeStep runs the sink's Write for the oldest queued chunk. The entry
// leaves the queue only once its write completes, so desired size counts
// the chunk until then.
func (s *WritableStream[T]) writeStep() {
	req := s.queue.peek().value
	s.inFlight = true
	ctrl := s.controller
	s.mu.Unlock()

	begin := time.Now()
	err := s.sink.Write(req.chunk, ctrl)
	elapsed := time.Since(begin)

	s.mu.Lock()
	s.inFlight = false
	s.queue.pop()
	if s.metrics != nil {
		s.metrics.ChunksDelivered.WithLabelValues("writable", s.name).Inc()
		s.metrics.QueueDepth.WithLabelValues("writable", s.name).Set(s.queue.total())
		s.metrics.WriteDuration.WithLabelValues(s.name).Observe(elapsed.Seconds())
	}
	var fns []func()
	completion := req.completion
	if err != nil {
		e := &StreamError{Kind: SinkError, Err: err}
		fns = s.startErroringLocked(e)
		fns = append(fns, func() { completion.Reject(e) })
	} else {
		fns = append(fns, func() { completion.Resolve(deferred.Void{}) })
		fns = append(fns, s.updateBackpressureLocked()...)
	}
	s.schedulePumpLocked()
	s.mu.Unlock()
	runAll(fns)
}

// closeStep runs the sink's Close once the queue has flushed.
func (s *WritableStream[T]) closeStep() {
	s.inFlight = true
	s.mu.Unlock()

	err := s.sink.Close()

	s.mu.Lock()
	s.inFlight = false
	var fns []func()
	closeDone := s.closeDone
	s.closeDone = nil
	if err != nil {
		e := &StreamError{Kind: SinkError, Err: err}
		// An abort that raced the close is settled here; the sink is not
		// torn down twice.
		if pa := s.pendingAbort; pa != nil {
			s.pendingAbort = nil
			completion := pa.completion
			fns = append(fns, func() { completion.Resolve(deferred.Void{}) })
		}
		fns = append(fns, s.startErroringLocked(e)...)
		if s.state == WritableStateErroring {
			s.schedulePumpLocked()
		}
		fns = append(fns, func() { closeDone.Reject(e) })
	} else {
		// A clean close wins over a concurrent abort.
		if pa := s.pendingAbort; pa != nil {
			s.pendingAbort = nil
			completion := pa.completion
			fns = append(fns, func() { completion.Resolve(deferred.Void{}) })
		}
		s.state = WritableStateClosed
		s.storedError = nil
		if w := s.writer; w != nil {
			closed := w.closed
			fns = append(fns, func() { closed.Resolve(deferred.Void{}) })
		}
		fns = append(fns, func() { closeDone.Resolve(deferred.Void{}) })
		if s.metrics != nil {
			s.metrics.StreamState.WithLabelValues("writable", s.name, "closed").Inc()
		}
	}
	s.mu.Unlock()
	runAll(fns)
}

// finishErroringStep completes the Erroring to Errored transition:
// drops and rejects queued writes, runs the sink's Abort when an abort
// was requested, then settles everything still pending. Entered with
// the lock held; in-flight work has drained.
func (s *WritableStream[T]) finishErroringStep() {
	err := s.storedError
	var rejections []func()
	for s.queue.len() > 0 {
		req := s.queue.pop().value
		completion := req.completion
		rejections = append(rejections, func() { completion.Reject(err) })
	}
	if s.metrics != nil {
		s.metrics.QueueDepth.WithLabelValues("writable", s.name).Set(0)
	}
	pa := s.pendingAbort
	s.pendingAbort = nil
	s.inFlight = true
	sink, logger, name := s.sink, s.logger, s.name
	s.mu.Unlock()

	// Dropped writes settle before the sink teardown runs.
	runAll(rejections)
	if pa != nil {
		if err := sink.Abort(pa.reason); err != nil {
			logger.Debug("stream sink abort failed", "stream", name, "error", err)
		}
	}

	s.mu.Lock()
	s.inFlight = false
	s.state = WritableStateErrored
	e := s.storedError
	var fns []func()
	if cd := s.closeDone; cd != nil {
		s.closeDone = nil
		fns = append(fns, func() { cd.Reject(e) })
	}
	if w := s.writer; w != nil {
		closed := w.closed
		fns = append(fns, func() { closed.Reject(e) })
	}
	if pa != nil {
		completion := pa.completion
		fns = append(fns, func() { completion.Resolve(deferred.Void{}) })
	}
	if s.metrics != nil {
		s.metrics.StreamState.WithLabelValues("writable", s.name, "errored").Inc()
	}
	s.mu.Unlock()
	runAll(fns)
}

func (s *WritableStream[T]) desiredSizeLocked() float64 {
	return s.highWaterMark - s.queue.total()
}

// updateBackpressureLocked recomputes the backpressure flag and swaps
// the writer's ready signal on transitions.
func (s *WritableStream[T]) updateBackpressureLocked() []func() {
	bp := s.desiredSizeLocked() <= 0
	if bp == s.backpressure {
		return nil
	}
	s.backpressure = bp
	if bp && s.metrics != nil {
		s.metrics.BackpressureEvents.WithLabelValues("writable", s.name).Inc()
	}
	var fns []func()
	if hook := s.onBackpressure; hook != nil {
		fns = append(fns, func() { hook(bp) })
	}
	w := s.writer
	if w == nil {
		return fns
	}
	if bp {
		w.ready = deferred.New[deferred.Void]()
		return fns
	}
	ready := w.ready
	return append(fns, func() { ready.Resolve(deferred.Void{}) })
}

// WritableController is the sink-facing handle of a writable stream.
type WritableController[T any] struct {
	stream *WritableStream[T]
}

// Error moves the stream to the errored state with e. Queued writes
// reject, and an in-flight write is allowed to finish before the stream
// settles into Errored.
func (c *WritableController[T]) Error(e error) {
	s := c.stream
	s.mu.Lock()
	fns := s.startErroringLocked(e)
	s.mu.Unlock()
	runAll(fns)
}

// ErrorSignal returns a channel closed when the stream starts erroring.
// Long-running sink writes select on it to stop early instead of holding
// the teardown hostage.
func (c *WritableController[T]) ErrorSignal() <-chan struct{} {
	return c.stream.erroringCh
}
