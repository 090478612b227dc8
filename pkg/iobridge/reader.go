package iobridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/vnykmshr/streamflow/pkg/streams"
)

// ErrReaderClosed is returned when reading from a closed StreamReader.
var ErrReaderClosed = errors.New("stream reader is closed")

// SourceConfig holds configuration options for ReaderSource.
type SourceConfig struct {
	// ChunkSize is the allocation used for a read when no reader-supplied
	// buffer is waiting to be filled.
	// Default: 32KB
	ChunkSize int

	// CloseOnCancel closes the underlying io.Reader on stream cancel when
	// it implements io.Closer.
	// Default: true
	CloseOnCancel bool
}

// DefaultSourceConfig returns a default configuration.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{
		ChunkSize:     32 * 1024,
		CloseOnCancel: true,
	}
}

// ReaderSource adapts an io.Reader to a byte stream source with default
// configuration. The source reads on demand only: each engine pull issues
// one Read against r, so backpressure on the stream holds the underlying
// reader back too.
func ReaderSource(r io.Reader) streams.ByteSource {
	return ReaderSourceWithConfig(r, DefaultSourceConfig())
}

// ReaderSourceWithConfig adapts an io.Reader to a byte stream source with
// the specified configuration.
func ReaderSourceWithConfig(r io.Reader, config SourceConfig) streams.ByteSource {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultSourceConfig().ChunkSize
	}
	return &readerSource{r: r, config: config}
}

type readerSource struct {
	r      io.Reader
	config SourceConfig
}

// Start implements streams.ByteSource.
func (s *readerSource) Start(*streams.ByteStreamController) error { return nil }

// Pull implements streams.ByteSource. A waiting reader buffer is filled
// directly; otherwise one chunk of up to ChunkSize bytes is enqueued.
func (s *readerSource) Pull(ctrl *streams.ByteStreamController) error {
	if req := ctrl.BYOBRequest(); req != nil {
		n, err := s.r.Read(req.View())
		if n > 0 {
			if rerr := req.Respond(n); rerr != nil {
				return rerr
			}
		}
		return s.finish(ctrl, err)
	}

	buf := make([]byte, s.config.ChunkSize)
	n, err := s.r.Read(buf)
	if n > 0 {
		if eerr := ctrl.Enqueue(buf[:n]); eerr != nil {
			return eerr
		}
	}
	return s.finish(ctrl, err)
}

func (s *readerSource) finish(ctrl *streams.ByteStreamController, err error) error {
	if err == io.EOF {
		return ctrl.Close()
	}
	return err
}

// Cancel implements streams.ByteSource.
func (s *readerSource) Cancel(error) error {
	if !s.config.CloseOnCancel {
		return nil
	}
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// StreamReader exposes a readable byte stream as an io.ReadCloser. Reads
// land directly in the caller's buffer. Close cancels the stream.
type StreamReader struct {
	reader *streams.BYOBReader

	mu     sync.Mutex
	err    error
	done   bool
	closed bool
}

// NewStreamReader locks s and returns an io.ReadCloser view over it. It
// fails if the stream is already locked or is not a byte stream.
func NewStreamReader(s *streams.ReadableStream[[]byte]) (*StreamReader, error) {
	r, err := streams.GetBYOBReader(s)
	if err != nil {
		return nil, err
	}
	return &StreamReader{reader: r}, nil
}

// Read implements io.Reader. The final chunk of a closing stream may be
// returned alongside a nil error, with io.EOF on the following call.
func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrReaderClosed
	}
	if r.err != nil {
		return 0, r.err
	}
	if r.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	n, done, err := r.reader.Read(context.Background(), p)
	if err != nil {
		r.err = err
		return n, err
	}
	if done {
		r.done = true
		if n == 0 {
			return 0, io.EOF
		}
	}
	return n, nil
}

// Close implements io.Closer by canceling the stream. Data not yet read
// is discarded.
func (r *StreamReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.reader.Cancel(context.Background(), nil)
}
