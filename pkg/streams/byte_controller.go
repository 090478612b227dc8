package streams

import (
	"log/slog"

	"github.com/vnykmshr/streamflow/pkg/deferred"
	"github.com/vnykmshr/streamflow/pkg/metrics"
	"github.com/vnykmshr/streamflow/pkg/taskq"
)

// readerKind records which kind of read a pull-into descriptor serves.
type readerKind int

const (
	// readerKindNone marks a descriptor orphaned by a reader release or a
	// withdrawn read. Its buffer stays on loan to the stream; bytes filled
	// into it are banked in the queue once the source finishes.
	readerKindNone readerKind = iota
	readerKindDefault
	readerKindBYOB
)

// pullIntoDescriptor tracks one consumer buffer being filled by the byte
// controller. bytesFilled grows monotonically and the descriptor commits
// once it reaches minimumFill, always on an elementSize boundary.
type pullIntoDescriptor struct {
	buffer      []byte
	bytesFilled int
	minimumFill int
	elementSize int
	readerType  readerKind
}

// ByteConfig configures a readable byte stream.
type ByteConfig struct {
	// HighWaterMark is the queued byte count below which the source is
	// pulled. Byte streams default to 0: the source is pulled only on
	// consumer demand.
	HighWaterMark float64

	// AutoAllocateChunkSize, when positive, lets plain Reader reads ride
	// the zero-copy fill path by allocating a buffer of this size per
	// parked read.
	AutoAllocateChunkSize int

	// Logger receives engine diagnostics. Nil uses slog.Default().
	Logger *slog.Logger

	// Metrics, when set, instruments the stream. Name labels the series.
	Metrics *metrics.Registry
	Name    string

	// Lane overrides the stream's serial task lane.
	Lane taskq.Queue
}

// DefaultByteConfig returns the default byte stream configuration.
func DefaultByteConfig() ByteConfig {
	return ByteConfig{}
}

// NewReadableByteStream creates a readable byte stream over source with
// the default configuration.
func NewReadableByteStream(source ByteSource) *ReadableStream[[]byte] {
	return NewReadableByteStreamWithConfig(source, DefaultByteConfig())
}

// NewReadableByteStreamWithConfig creates a readable byte stream over
// source with the specified configuration.
func NewReadableByteStreamWithConfig(source ByteSource, config ByteConfig) *ReadableStream[[]byte] {
	s := newReadableShell[[]byte](config.Lane, config.Logger, config.Metrics, config.Name)
	c := &ByteStreamController{
		stream:           s,
		source:           source,
		highWaterMark:    normalizedHighWaterMark(config.HighWaterMark),
		autoAllocateSize: config.AutoAllocateChunkSize,
	}
	s.ctrl = c
	s.lane.Post(c.startTask)
	return s
}

// ByteStreamController owns the queue, pull coordination and pending
// pull-into descriptors of a readable byte stream. It is the handle
// passed to the stream's ByteSource.
type ByteStreamController struct {
	stream *ReadableStream[[]byte]
	source ByteSource

	queue            byteQueue
	highWaterMark    float64
	autoAllocateSize int

	phase            pullPhase
	started          bool
	closeRequested   bool
	pendingPullIntos []*pullIntoDescriptor
}

// startTask runs the source's Start hook on the stream lane.
func (c *ByteStreamController) startTask() {
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

// Enqueue makes chunk available to the stream's consumer. The stream
// takes ownership of chunk; the caller must not retain or modify it.
// Waiting reads are satisfied zero-copy where possible: a waiting
// default read is handed the chunk itself, and waiting BYOB reads are
// filled through their descriptors.
func (c *ByteStreamController) Enqueue(chunk []byte) error {
	s := c.stream
	s.mu.Lock()
	if err := c.stateCheckLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if len(chunk) == 0 {
		s.mu.Unlock()
		return protocolViolation(ErrEmptyChunk)
	}

	if len(c.pendingPullIntos) > 0 && c.pendingPullIntos[0].readerType == readerKindNone {
		c.detachOrphanLocked()
	}

	var fns []func()
	switch {
	case s.reader != nil && len(s.reader.readRequests) > 0:
		// A default read is waiting; hand it the chunk directly. The
		// read's auto-allocated descriptor, if any, is discarded unfilled.
		if len(c.pendingPullIntos) > 0 {
			c.pendingPullIntos = c.pendingPullIntos[1:]
		}
		r := s.reader
		req := r.readRequests[0]
		r.readRequests = r.readRequests[1:]
		c.noteDeliveredLocked(len(chunk))
		fns = append(fns, func() { req.Resolve(readOutcome[[]byte]{value: chunk}) })
	case s.byobReader != nil:
		c.queue.push(chunk, 0, len(chunk))
		c.noteEnqueuedLocked(len(chunk))
		fns = c.processPullIntosLocked()
	default:
		c.queue.push(chunk, 0, len(chunk))
		c.noteEnqueuedLocked(len(chunk))
	}
	c.callPullIfNeededLocked()
	s.mu.Unlock()
	runAll(fns)
	return nil
}

// Close marks the end of the source's data. Queued bytes are still
// delivered; once the queue drains, pending reads filled to an element
// boundary commit what they hold and the rest resolve as done. A read
// stopped mid-element fails the close and errors the stream.
func (c *ByteStreamController) Close() error {
	s := c.stream
	s.mu.Lock()
	if err := c.stateCheckLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if c.queue.total() > 0 {
		c.closeRequested = true
		s.mu.Unlock()
		return nil
	}
	fns, err := c.finishCloseLocked()
	s.mu.Unlock()
	runAll(fns)
	return err
}

// Error moves the stream to the errored state with e. Queued bytes and
// pending descriptors are discarded and pending reads reject. No-op if
// the stream is already terminal.
func (c *ByteStreamController) Error(e error) {
	s := c.stream
	s.mu.Lock()
	fns := s.errorLocked(e)
	s.mu.Unlock()
	runAll(fns)
}

// DesiredSize returns how many more bytes the stream wants queued: the
// high-water mark minus the queued total. Zero or negative asserts
// backpressure; zero once the stream is terminal.
func (c *ByteStreamController) DesiredSize() float64 {
	s := c.stream
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ReadableStateReadable {
		return 0
	}
	return c.desiredSizeLocked()
}

func (c *ByteStreamController) desiredSizeLocked() float64 {
	return c.highWaterMark - c.queue.total()
}

func (c *ByteStreamController) stateCheckLocked() error {
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

// readLocked services one default read: pop the oldest chunk whole, or
// park the request, auto-allocating a descriptor so the source can fill
// it in place.
func (c *ByteStreamController) readLocked(req *deferred.Deferred[readOutcome[[]byte]]) []func() {
	s := c.stream
	if c.queue.total() > 0 {
		entry := c.queue.pop()
		view := entry.buffer[entry.byteOffset : entry.byteOffset+entry.byteLength]
		c.noteDeliveredLocked(len(view))
		fns := c.handleQueueDrainLocked()
		return append(fns, func() { req.Resolve(readOutcome[[]byte]{value: view}) })
	}

	if c.autoAllocateSize > 0 {
		c.pendingPullIntos = append(c.pendingPullIntos, &pullIntoDescriptor{
			buffer:      make([]byte, c.autoAllocateSize),
			minimumFill: 1,
			elementSize: 1,
			readerType:  readerKindDefault,
		})
	}
	s.reader.readRequests = append(s.reader.readRequests, req)
	c.callPullIfNeededLocked()
	return nil
}

// readIntoLocked services one BYOB read into buf. minimumFill and
// elementSize are in bytes, already validated by the reader.
func (c *ByteStreamController) readIntoLocked(buf []byte, minimumFill, elementSize int, req *deferred.Deferred[readIntoOutcome]) []func() {
	s := c.stream
	desc := &pullIntoDescriptor{
		buffer:      buf,
		minimumFill: minimumFill,
		elementSize: elementSize,
		readerType:  readerKindBYOB,
	}

	if len(c.pendingPullIntos) > 0 {
		c.pendingPullIntos = append(c.pendingPullIntos, desc)
		s.byobReader.readIntoRequests = append(s.byobReader.readIntoRequests, req)
		return nil
	}

	if c.queue.total() > 0 {
		if c.fillFromQueueLocked(desc) {
			n := desc.bytesFilled
			c.noteDeliveredLocked(n)
			fns := c.handleQueueDrainLocked()
			return append(fns, func() { req.Resolve(readIntoOutcome{n: n}) })
		}
		if c.closeRequested {
			// The remaining queued bytes cannot complete an element.
			e := &StreamError{Kind: SourceError, Err: ErrSizeMismatch}
			fns := s.errorLocked(e)
			return append(fns, func() { req.Resolve(readIntoOutcome{err: e}) })
		}
	}

	c.pendingPullIntos = append(c.pendingPullIntos, desc)
	s.byobReader.readIntoRequests = append(s.byobReader.readIntoRequests, req)
	c.callPullIfNeededLocked()
	return nil
}

// fillFromQueueLocked copies queued bytes into desc, consuming entries.
// Reports whether desc reached its minimum fill on an element boundary;
// when it has not, every queued byte has been moved into desc.
func (c *ByteStreamController) fillFromQueueLocked(desc *pullIntoDescriptor) bool {
	available := int(c.queue.total())
	maxBytesToCopy := min(available, len(desc.buffer)-desc.bytesFilled)
	maxBytesFilled := desc.bytesFilled + maxBytesToCopy

	toCopy := maxBytesToCopy
	ready := false
	maxAligned := maxBytesFilled - maxBytesFilled%desc.elementSize
	if maxAligned >= desc.minimumFill {
		ready = true
		toCopy = maxAligned - desc.bytesFilled
	}

	for toCopy > 0 {
		head := c.queue.peek()
		n := min(toCopy, head.byteLength)
		copy(desc.buffer[desc.bytesFilled:], head.buffer[head.byteOffset:head.byteOffset+n])
		c.queue.consume(n)
		desc.bytesFilled += n
		toCopy -= n
	}
	return ready
}

// commitLocked delivers a descriptor's fill to its waiting read. done
// marks deliveries that accompany the stream's close.
func (c *ByteStreamController) commitLocked(desc *pullIntoDescriptor, done bool) []func() {
	s := c.stream
	switch desc.readerType {
	case readerKindBYOB:
		b := s.byobReader
		if b == nil || len(b.readIntoRequests) == 0 {
			return nil
		}
		req := b.readIntoRequests[0]
		b.readIntoRequests = b.readIntoRequests[1:]
		n := desc.bytesFilled
		c.noteDeliveredLocked(n)
		return []func(){func() { req.Resolve(readIntoOutcome{n: n, done: done}) }}
	case readerKindDefault:
		r := s.reader
		if r == nil || len(r.readRequests) == 0 {
			return nil
		}
		req := r.readRequests[0]
		r.readRequests = r.readRequests[1:]
		if done {
			return []func(){func() { req.Resolve(readOutcome[[]byte]{done: true}) }}
		}
		view := desc.buffer[:desc.bytesFilled]
		c.noteDeliveredLocked(len(view))
		return []func(){func() { req.Resolve(readOutcome[[]byte]{value: view}) }}
	}
	return nil
}

// processPullIntosLocked commits descriptors, oldest first, for as long
// as queued bytes satisfy them.
func (c *ByteStreamController) processPullIntosLocked() []func() {
	var fns []func()
	for len(c.pendingPullIntos) > 0 && c.queue.total() > 0 {
		desc := c.pendingPullIntos[0]
		if !c.fillFromQueueLocked(desc) {
			break
		}
		c.pendingPullIntos = c.pendingPullIntos[1:]
		fns = append(fns, c.commitLocked(desc, false)...)
	}
	return fns
}

// handleQueueDrainLocked finishes a requested close once the queue is
// empty, otherwise keeps the pull loop fed.
func (c *ByteStreamController) handleQueueDrainLocked() []func() {
	if c.closeRequested && c.queue.total() == 0 {
		fns, _ := c.finishCloseLocked()
		return fns
	}
	c.callPullIfNeededLocked()
	return nil
}

// finishCloseLocked completes a close. Descriptors stopped mid-element
// fail the close and error the stream; aligned fills commit with done
// set, and remaining reads drain as done when the stream closes.
// Orphaned descriptors owe no read and are dropped.
func (c *ByteStreamController) finishCloseLocked() ([]func(), error) {
	s := c.stream
	for _, desc := range c.pendingPullIntos {
		if desc.readerType == readerKindNone {
			continue
		}
		if desc.bytesFilled%desc.elementSize != 0 {
			e := &StreamError{Kind: SourceError, Err: ErrSizeMismatch}
			return s.errorLocked(e), e
		}
	}
	descs := c.pendingPullIntos
	c.pendingPullIntos = nil
	var fns []func()
	for _, desc := range descs {
		if desc.readerType == readerKindNone {
			continue
		}
		fns = append(fns, c.commitLocked(desc, true)...)
	}
	return append(fns, s.closeLocked()...), nil
}

// detachOrphanLocked banks the head descriptor's filled prefix into the
// queue and drops the descriptor. The head must be orphaned.
func (c *ByteStreamController) detachOrphanLocked() {
	desc := c.pendingPullIntos[0]
	c.pendingPullIntos = c.pendingPullIntos[1:]
	if desc.bytesFilled > 0 {
		chunk := make([]byte, desc.bytesFilled)
		copy(chunk, desc.buffer[:desc.bytesFilled])
		c.queue.push(chunk, 0, len(chunk))
		c.noteEnqueuedLocked(len(chunk))
	}
}

func (c *ByteStreamController) shouldPullLocked() bool {
	s := c.stream
	if s.state != ReadableStateReadable || c.closeRequested || !c.started {
		return false
	}
	if r := s.reader; r != nil && len(r.readRequests) > 0 {
		return true
	}
	if b := s.byobReader; b != nil && len(b.readIntoRequests) > 0 {
		return true
	}
	return c.desiredSizeLocked() > 0
}

// callPullIfNeededLocked drives the pull loop. The source sees at most
// one Pull in flight; a need that arises while one is running is noted
// and replayed on completion.
func (c *ByteStreamController) callPullIfNeededLocked() {
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
func (c *ByteStreamController) pullTask() {
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
func (c *ByteStreamController) cancelClearLocked() func(reason error) error {
	c.pendingPullIntos = nil
	c.queue.reset()
	return c.source.Cancel
}

// clearLocked implements readableController.
func (c *ByteStreamController) clearLocked() {
	c.pendingPullIntos = nil
	c.queue.reset()
}

// releaseLocked implements readableController. The head descriptor is
// orphaned rather than dropped: its buffer may already be exposed to the
// source, so it stays on loan until the source finishes with it.
func (c *ByteStreamController) releaseLocked() {
	if len(c.pendingPullIntos) == 0 {
		return
	}
	first := c.pendingPullIntos[0]
	first.readerType = readerKindNone
	c.pendingPullIntos = []*pullIntoDescriptor{first}
}

func (c *ByteStreamController) noteEnqueuedLocked(n int) {
	s := c.stream
	if s.metrics == nil {
		return
	}
	s.metrics.ChunksEnqueued.WithLabelValues("readable", s.name).Inc()
	s.metrics.BytesEnqueued.WithLabelValues("readable", s.name).Add(float64(n))
	s.metrics.QueueDepth.WithLabelValues("readable", s.name).Set(c.queue.total())
}

func (c *ByteStreamController) noteDeliveredLocked(n int) {
	s := c.stream
	if s.metrics == nil {
		return
	}
	s.metrics.ChunksDelivered.WithLabelValues("readable", s.name).Inc()
	s.metrics.BytesDelivered.WithLabelValues("readable", s.name).Add(float64(n))
	s.metrics.QueueDepth.WithLabelValues("readable", s.name).Set(c.queue.total())
}

// BYOBRequest returns the source-facing view of the oldest pending
// consumer buffer, or nil when no buffer is waiting to be filled.
func (c *ByteStreamController) BYOBRequest() *BYOBRequest {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	if len(c.pendingPullIntos) == 0 {
		return nil
	}
	return &BYOBRequest{ctrl: c, desc: c.pendingPullIntos[0]}
}

// BYOBRequest exposes a pending consumer buffer to the source for
// zero-copy filling. A request stays valid until the read it backs
// settles; responding on a stale request fails with ErrStaleBYOBRequest.
type BYOBRequest struct {
	ctrl *ByteStreamController
	desc *pullIntoDescriptor
}

// View returns the unfilled window of the consumer's buffer. The source
// writes bytes into it and then calls Respond with the count written.
func (r *BYOBRequest) View() []byte {
	r.ctrl.stream.mu.Lock()
	defer r.ctrl.stream.mu.Unlock()
	return r.desc.buffer[r.desc.bytesFilled:]
}

// Respond reports that the source wrote n bytes into View. The
// descriptor commits once its minimum fill is reached; bytes past the
// last element boundary carry over into the queue for the next read.
func (r *BYOBRequest) Respond(n int) error {
	c := r.ctrl
	s := c.stream
	s.mu.Lock()
	if len(c.pendingPullIntos) == 0 || c.pendingPullIntos[0] != r.desc {
		s.mu.Unlock()
		return protocolViolation(ErrStaleBYOBRequest)
	}
	if n <= 0 || r.desc.bytesFilled+n > len(r.desc.buffer) {
		s.mu.Unlock()
		return protocolViolation(ErrRespondBounds)
	}
	fns := c.respondInReadableLocked(r.desc, n)
	s.mu.Unlock()
	runAll(fns)
	return nil
}

// respondInReadableLocked absorbs a source fill of n bytes into the head
// descriptor and delivers whatever became ready.
func (c *ByteStreamController) respondInReadableLocked(desc *pullIntoDescriptor, n int) []func() {
	desc.bytesFilled += n

	if desc.readerType == readerKindNone {
		c.detachOrphanLocked()
		fns := c.processPullIntosLocked()
		return append(fns, c.handleQueueDrainLocked()...)
	}

	if desc.bytesFilled < desc.minimumFill {
		c.callPullIfNeededLocked()
		return nil
	}

	c.pendingPullIntos = c.pendingPullIntos[1:]
	remainder := desc.bytesFilled % desc.elementSize
	if remainder > 0 {
		chunk := make([]byte, remainder)
		copy(chunk, desc.buffer[desc.bytesFilled-remainder:desc.bytesFilled])
		desc.bytesFilled -= remainder
		c.queue.push(chunk, 0, len(chunk))
		c.noteEnqueuedLocked(len(chunk))
	}
	fns := c.commitLocked(desc, false)
	fns = append(fns, c.processPullIntosLocked()...)
	return append(fns, c.handleQueueDrainLocked()...)
}
