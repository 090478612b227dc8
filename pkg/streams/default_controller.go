package streams

import "github.com/vnykmshr/streamflow/pkg/deferred"

// pullPhase tracks the controller's pull loop. Transitions:
//
//	pullIdle   --want pull--> pullActive (source invoked)
//	pullActive --want pull--> pullQueued (re-pull noted, source busy)
//	pullActive --completed--> pullIdle
//	pullQueued --completed--> pullIdle, then immediately re-evaluated
//
// The source's Pull is in flight exactly while the phase is not pullIdle.
type pullPhase int

const (
	pullIdle pullPhase = iota
	pullActive
	pullQueued
)

// DefaultController owns the queue and pull coordination of a default
// readable stream. It is the handle passed to the stream's Source.
type DefaultController[T any] struct {
	stream *ReadableStream[T]
	source Source[T]

	queue         sizedQueue[T]
	strategy      Strategy[T]
	highWaterMark float64

	phase          pullPhase
	started        bool
	closeRequested bool
}

// startTask runs the source's Start hook on the stream lane.
func (c *DefaultController[T]) startTask() {
	err := c.source.Start(c)

	s := c.stream
	s.mu.Lock()
	c.started = true
	var fns []func()
	if err != nil {
		fns = s.errorLocked(&StreamError{Kind: SourceError, Err: err})
	} else {
		c.callPullIfNeededLocked()
	}
	s.mu.Unlock()
	runAll(fns)
}

// Enqueue makes chunk available to the stream's consumer. If a read is
// already waiting the chunk is handed to it directly, bypassing the
// queue. Fails with a ProtocolError once the stream is closing, closed
// or errored; a size function failure errors the stream and is returned.
func (c *DefaultController[T]) Enqueue(chunk T) error {
	s := c.stream
	s.mu.Lock()
	if err := c.stateCheckLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	size, err := c.strategy.chunkSize(chunk)
	if err != nil {
		fns := s.errorLocked(err)
		s.mu.Unlock()
		runAll(fns)
		return err
	}

	var fns []func()
	if r := s.reader; r != nil && len(r.readRequests) > 0 {
		req := r.readRequests[0]
		r.readRequests = r.readRequests[1:]
		fns = append(fns, func() { req.Resolve(readOutcome[T]{value: chunk}) })
		if s.metrics != nil {
			s.metrics.ChunksDelivered.WithLabelValues("readable", s.name).Inc()
		}
	} else {
		c.queue.push(chunk, size)
		if s.metrics != nil {
			s.metrics.ChunksEnqueued.WithLabelValues("readable", s.name).Inc()
			s.metrics.QueueDepth.WithLabelValues("readable", s.name).Set(c.queue.total())
		}
	}
	c.callPullIfNeededLocked()
	s.mu.Unlock()
	runAll(fns)
	return nil
}

// Close marks the end of the source's data. Queued chunks are still
// delivered; the stream reaches Closed once the queue drains.
func (c *DefaultController[T]) Close() error {
	s := c.stream
	s.mu.Lock()
	if err := c.stateCheckLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if c.queue.len() > 0 {
		c.closeRequested = true
		s.mu.Unlock()
		return nil
	}
	fns := s.closeLocked()
	s.mu.Unlock()
	runAll(fns)
	return nil
}

// Error moves the stream to the errored state with e. Queued chunks are
// discarded and pending reads reject. No-op if the stream is already
// terminal.
func (c *DefaultController[T]) Error(e error) {
	s := c.stream
	s.mu.Lock()
	fns := s.errorLocked(e)
	s.mu.Unlock()
	runAll(fns)
}

// DesiredSize returns how much more data the stream wants: the
// high-water mark minus the queued total. Zero or negative asserts
// backpressure; zero once the stream is terminal.
func (c *DefaultController[T]) DesiredSize() float64 {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ReadableStateReadable {
		return 0
	}
	return c.desiredSizeLocked()
}

func (c *DefaultController[T]) desiredSizeLocked() float64 {
	return c.highWaterMark - c.queue.total()
}

// stateCheckLocked validates that enqueue/close are still permitted.
func (c *DefaultController[T]) stateCheckLocked() error {
	if c.closeRequested {
		return protocolViolation(ErrStreamClosing)
	}
	switch c.stream.state {
	case ReadableStateClosed:
		return protocolViolation(ErrStreamClosed)
	case ReadableStateErrored:
		return protocolViolation(ErrStreamErrored)
	}
	return nil
}

// readLocked services one read request: deliver from the queue when
// possible, otherwise park the request and prod the source.
func (c *DefaultController[T]) readLocked(req *deferred.Deferred[readOutcome[T]]) []func() {
	s := c.stream
	if c.queue.len() > 0 {
		entry := c.queue.pop()
		var fns []func()
		if c.closeRequested && c.queue.len() == 0 {
			fns = s.closeLocked()
		} else {
			c.callPullIfNeededLocked()
		}
		if s.metrics != nil {
			s.metrics.ChunksDelivered.WithLabelValues("readable", s.name).Inc()
			s.metrics.QueueDepth.WithLabelValues("readable", s.name).Set(c.queue.total())
		}
		return append(fns, func() { req.Resolve(readOutcome[T]{value: entry.value}) })
	}

	s.reader.readRequests = append(s.reader.readRequests, req)
	c.callPullIfNeededLocked()
	return nil
}

func (c *DefaultController[T]) shouldPullLocked() bool {
	s := c.stream
	if s.state != ReadableStateReadable || c.closeRequested || !c.started {
		return false
	}
	if r := s.reader; r != nil && len(r.readRequests) > 0 {
		return true
	}
	return c.desiredSizeLocked() > 0
}

// callPullIfNeededLocked drives the pull loop. The source sees at most
// one Pull in flight; a need that arises while one is running is noted
// and replayed on completion.
func (c *DefaultController[T]) callPullIfNeededLocked() {
	if !c.shouldPullLocked() {
		return
	}
	if c.phase != pullIdle {
		c.phase = pullQueued
		return
	}
	c.phase = pullActive
	c.stream.lane.Post(c.pullTask)
}

// pullTask invokes the source's Pull on the stream lane.
func (c *DefaultController[T]) pullTask() {
	err := c.source.Pull(c)

	s := c.stream
	s.mu.Lock()
	var fns []func()
	if err != nil {
		fns = s.errorLocked(&StreamError{Kind: SourceError, Err: err})
		c.phase = pullIdle
	} else {
		again := c.phase == pullQueued
		c.phase = pullIdle
		if again {
			c.callPullIfNeededLocked()
		}
	}
	s.mu.Unlock()
	runAll(fns)
}

// cancelClearLocked implements readableController.
func (c *DefaultController[T]) cancelClearLocked() func(reason error) error {
	c.queue.reset()
	return c.source.Cancel
}

// clearLocked implements readableController.
func (c *DefaultController[T]) clearLocked() {
	c.queue.reset()
}

// releaseLocked implements readableController.
func (c *DefaultController[T]) releaseLocked() {}
