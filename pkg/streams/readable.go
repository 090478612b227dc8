package streams

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vnykmshr/streamflow/pkg/deferred"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/taskq"
)

// ReadableState is the lifecycle state of a readable stream.
type ReadableState int

const (
	// ReadableStateReadable means the stream may still produce chunks.
	ReadableStateReadable ReadableState = iota

	// ReadableStateClosed means the stream ended normally. Terminal.
	ReadableStateClosed

	// ReadableStateErrored means the stream failed. Terminal; the error
	// is available through Err.
	ReadableStateErrored
)

func (s ReadableState) String() string {
	switch s {
	case ReadableStateReadable:
		return "readable"
	case ReadableStateClosed:
		return "closed"
	case ReadableStateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// readOutcome is the settled result of one read request: exactly one of
// a chunk, a done marker, or an error.
type readOutcome[T any] struct {
	value T
	done  bool
	err   error
}

// readIntoOutcome is the settled result of one BYOB read request.
type readIntoOutcome struct {
	n    int
	done bool
	err  error
}

// readableController is the variant-specific half of a readable stream.
// All *Locked methods run under and rely on the stream mutex; returned
// funcs are completions the caller runs after unlocking.
type readableController[T any] interface {
	// readLocked services one default read request.
	readLocked(req *deferred.Deferred[readOutcome[T]]) []func()

	// cancelClearLocked drops buffered state and returns the source's
	// cancel hook to be invoked off the lock.
	cancelClearLocked() func(reason error) error

	// clearLocked drops buffered state on error transitions.
	clearLocked()

	// releaseLocked reacts to the attached reader being released.
	releaseLocked()

	desiredSizeLocked() float64
}

// ReadableConfig configures a readable stream.
type ReadableConfig[T any] struct {
	// Strategy sets the high-water mark and per-chunk sizing.
	Strategy Strategy[T]

	// Logger receives engine diagnostics (discarded cancel failures).
	// Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics, when set, instruments the stream. Name labels the series.
	Metrics *metrics.Registry
	Name    string

	// Lane overrides the stream's serial task lane.
	Lane taskq.Queue
}

// DefaultReadableConfig returns a default configuration: count-based
// sizing with a high-water mark of 1.
func DefaultReadableConfig[T any]() ReadableConfig[T] {
	return ReadableConfig[T]{Strategy: CountStrategy[T](1)}
}

// ReadableStream is a source of chunks with internal queuing and
// backpressure. At most one Reader (or, for byte streams, one BYOBReader)
// is attached at a time.
type ReadableStream[T any] struct {
	mu          sync.Mutex
	state       ReadableState
	storedError error

	ctrl       readableController[T]
	reader     *Reader[T]
	byobReader *BYOBReader

	lane    taskq.Queue
	logger  *slog.Logger
	metrics *metrics.Registry
	name    string
}

// NewReadable creates a readable stream over source with the default
// configuration.
func NewReadable[T any](source Source[T]) *ReadableStream[T] {
	return NewReadableWithConfig(source, DefaultReadableConfig[T]())
}

// NewReadableWithConfig creates a readable stream over source with the
// specified configuration.
func NewReadableWithConfig[T any](source Source[T], config ReadableConfig[T]) *ReadableStream[T] {
	s := newReadableShell[T](config.Lane, config.Logger, config.Metrics, config.Name)
	c := &DefaultController[T]{
		stream:        s,
		source:        source,
		highWaterMark: normalizedHighWaterMark(config.Strategy.HighWaterMark),
		strategy:      config.Strategy,
	}
	s.ctrl = c
	s.lane.Post(c.startTask)
	return s
}

func newReadableShell[T any](lane taskq.Queue, logger *slog.Logger, reg *metrics.Registry, name string) *ReadableStream[T] {
	if lane == nil {
		lane = taskq.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadableStream[T]{
		state:   ReadableStateReadable,
		lane:    lane,
		logger:  logger,
		metrics: reg,
		name:    name,
	}
}

// State returns the stream's lifecycle state.
func (s *ReadableStream[T]) State() ReadableState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the stream's error, or nil while the stream has not errored.
func (s *ReadableStream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storedError
}

// Locked reports whether a reader is currently attached.
func (s *ReadableStream[T]) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedLocked()
}

func (s *ReadableStream[T]) lockedLocked() bool {
	return s.reader != nil || s.byobReader != nil
}

// GetReader attaches an exclusive default reader. It fails with ErrLocked
// if a reader is already attached.
func (s *ReadableStream[T]) GetReader() (*Reader[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lockedLocked() {
		return nil, protocolViolation(ErrLocked)
	}

	r := &Reader[T]{stream: s}
	switch s.state {
	case ReadableStateReadable:
		r.closed = deferred.New[deferred.Void]()
	case ReadableStateClosed:
		r.closed = deferred.ResolvedWith(deferred.Void{})
	case ReadableStateErrored:
		r.closed = deferred.RejectedWith[deferred.Void](s.storedError)
	}
	s.reader = r
	return r, nil
}

// Cancel signals loss of interest in the stream. The queue is discarded,
// pending reads resolve as done, and the source's cancel hook runs, its
// own failure logged and discarded. Cancel never fails once issued; the
// returned error is only ctx exceeding or a lock violation.
func (s *ReadableStream[T]) Cancel(ctx context.Context, reason error) error {
	s.mu.Lock()
	if s.lockedLocked() {
		s.mu.Unlock()
		return protocolViolation(ErrLocked)
	}
	d, fns := s.cancelLocked(reason)
	s.mu.Unlock()
	runAll(fns)
	_, err := d.Await(ctx)
	return err
}

// cancelLocked runs the shared cancel path. Always settles the returned
// deferred with success, per the best-effort cancellation contract.
func (s *ReadableStream[T]) cancelLocked(reason error) (*deferred.Deferred[deferred.Void], []func()) {
	if s.state != ReadableStateReadable {
		return deferred.ResolvedWith(deferred.Void{}), nil
	}

	cancelFn := s.ctrl.cancelClearLocked()
	fns := s.closeLocked()

	d := deferred.New[deferred.Void]()
	logger, name := s.logger, s.name
	fns = append(fns, func() {
		go func() {
			if err := cancelFn(reason); err != nil {
				logger.Debug("stream source cancel failed", "stream", name, "error", err)
			}
			d.Resolve(deferred.Void{})
		}()
	})
	return d, fns
}

// closeLocked transitions to Closed and drains every pending read with a
// done outcome, FIFO. Caller must have verified state is Readable.
func (s *ReadableStream[T]) closeLocked() []func() {
	s.state = ReadableStateClosed

	var fns []func()
	if r := s.reader; r != nil {
		reqs := r.readRequests
		r.readRequests = nil
		closed := r.closed
		fns = append(fns, func() {
			for _, req := range reqs {
				req.Resolve(readOutcome[T]{done: true})
			}
			closed.Resolve(deferred.Void{})
		})
	}
	if b := s.byobReader; b != nil {
		reqs := b.readIntoRequests
		b.readIntoRequests = nil
		closed := b.closed
		fns = append(fns, func() {
			for _, req := range reqs {
				req.Resolve(readIntoOutcome{done: true})
			}
			closed.Resolve(deferred.Void{})
		})
	}
	if s.metrics != nil {
		s.metrics.StreamState.WithLabelValues("readable", s.name, "closed").Inc()
	}
	return fns
}

// errorLocked transitions to Errored, clears all buffered data, and
// rejects every pending read with e, FIFO. No-op outside Readable.
func (s *ReadableStream[T]) errorLocked(e error) []func() {
	if s.state != ReadableStateReadable {
		return nil
	}
	s.state = ReadableStateErrored
	s.storedError = e
	s.ctrl.clearLocked()

	var fns []func()
	if r := s.reader; r != nil {
		reqs := r.readRequests
		r.readRequests = nil
		closed := r.closed
		fns = append(fns, func() {
			for _, req := range reqs {
				req.Resolve(readOutcome[T]{err: e})
			}
			closed.Reject(e)
		})
	}
	if b := s.byobReader; b != nil {
		reqs := b.readIntoRequests
		b.readIntoRequests = nil
		closed := b.closed
		fns = append(fns, func() {
			for _, req := range reqs {
				req.Resolve(readIntoOutcome{err: e})
			}
			closed.Reject(e)
		})
	}
	if s.metrics != nil {
		s.metrics.StreamErrors.WithLabelValues("readable", s.name).Inc()
		s.metrics.StreamState.WithLabelValues("readable", s.name, "errored").Inc()
	}
	return fns
}

// terminalReadLocked builds the immediate outcome for reads issued
// against a closed or errored stream.
func (s *ReadableStream[T]) terminalReadLocked() (readOutcome[T], bool) {
	switch s.state {
	case ReadableStateClosed:
		return readOutcome[T]{done: true}, true
	case ReadableStateErrored:
		return readOutcome[T]{err: s.storedError}, true
	default:
		return readOutcome[T]{}, false
	}
}

func runAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
