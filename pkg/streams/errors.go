package streams

import "errors"

// Sentinel errors reported by stream operations. Protocol-level sentinels
// are wrapped in a *ProtocolError; match them with errors.Is.
var (
	// ErrStreamClosed indicates an operation on a closed stream.
	ErrStreamClosed = errors.New("stream is closed")

	// ErrStreamClosing indicates an operation on a stream whose close has
	// already been requested.
	ErrStreamClosing = errors.New("stream close already requested")

	// ErrStreamErrored indicates an operation on an errored stream.
	ErrStreamErrored = errors.New("stream is errored")

	// ErrLocked indicates the stream is already locked to a reader or writer.
	ErrLocked = errors.New("stream is locked")

	// ErrReleased indicates the reader or writer issuing the call has been
	// released from its stream.
	ErrReleased = errors.New("reader or writer has been released")

	// ErrInvalidSize indicates the size function returned a negative or
	// non-finite chunk size.
	ErrInvalidSize = errors.New("chunk size must be a non-negative finite number")

	// ErrAborted is the stored error of a stream aborted without a reason.
	ErrAborted = errors.New("stream aborted")

	// ErrTerminated is the error writes observe after a transform
	// terminates its stream.
	ErrTerminated = errors.New("transform terminated")

	// ErrEmptyChunk indicates an attempt to enqueue a zero-length byte chunk.
	ErrEmptyChunk = errors.New("byte chunk must not be empty")

	// ErrSizeMismatch indicates a byte stream was closed while a pending
	// read had been filled with a partial element.
	ErrSizeMismatch = errors.New("close with partially filled element")

	// ErrNotByteStream indicates a byte-stream-only operation was invoked
	// on a default stream.
	ErrNotByteStream = errors.New("operation requires a byte stream")

	// ErrTeeByteStream indicates tee was invoked on a byte stream.
	ErrTeeByteStream = errors.New("tee is not supported on byte streams")

	// ErrInvalidReadInto indicates a BYOB read whose buffer or options
	// violate the element size constraints.
	ErrInvalidReadInto = errors.New("read buffer violates element size constraints")

	// ErrStaleBYOBRequest indicates a respond on a request that no longer
	// heads the pending descriptor queue.
	ErrStaleBYOBRequest = errors.New("byob request is no longer current")

	// ErrRespondBounds indicates a respond with a byte count outside the
	// descriptor's remaining window.
	ErrRespondBounds = errors.New("respond exceeds descriptor window")
)

// ProtocolError wraps a misuse of the stream API: a call that is invalid
// in the stream's current state. The offending call fails immediately and
// stream state is left untouched.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string { return "stream protocol: " + e.Err.Error() }

// Unwrap returns the underlying sentinel.
func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolViolation(err error) error { return &ProtocolError{Err: err} }

// IsProtocolViolation reports whether err marks an API misuse rather than
// a data-path failure.
func IsProtocolViolation(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// ErrorKind classifies which collaborator a StreamError originated from.
type ErrorKind int

const (
	// SourceError marks a failure of the source collaborator (start or pull).
	SourceError ErrorKind = iota

	// SinkError marks a failure of the sink collaborator (start, write or close).
	SinkError
)

func (k ErrorKind) String() string {
	switch k {
	case SourceError:
		return "source"
	case SinkError:
		return "sink"
	default:
		return "unknown"
	}
}

// StreamError wraps a collaborator failure that errored a stream. The
// payload is carried opaquely; the engine never inspects it.
type StreamError struct {
	Kind ErrorKind
	Err  error
}

func (e *StreamError) Error() string { return e.Kind.String() + " error: " + e.Err.Error() }

// Unwrap returns the collaborator's own error.
func (e *StreamError) Unwrap() error { return e.Err }

// IsSourceError reports whether err is a stream error caused by the
// source collaborator.
func IsSourceError(err error) bool {
	var se *StreamError
	return errors.As(err, &se) && se.Kind == SourceError
}

// IsSinkError reports whether err is a stream error caused by the sink
// collaborator.
func IsSinkError(err error) bool {
	var se *StreamError
	return errors.As(err, &se) && se.Kind == SinkError
}
