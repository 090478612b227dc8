package iobridge

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/streams"
)

type captureWriter struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	err    error
	closed bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	return c.buf.Write(p)
}

func (c *captureWriter) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *captureWriter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *captureWriter) wasClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestWriterSinkWritesChunksInOrder(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	out := &captureWriter{}
	s := streams.NewWritable[[]byte](WriterSink(out))
	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, w.Write(ctx, []byte("ab")))
	testutil.AssertNoError(t, w.Write(ctx, []byte("cd")))
	testutil.AssertNoError(t, w.Close(ctx))

	testutil.AssertEqual(t, out.String(), "abcd")
	testutil.AssertEqual(t, out.wasClosed(), true)
}

func TestWriterSinkAbortClosesUnderlying(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	out := &captureWriter{}
	s := streams.NewWritable[[]byte](WriterSink(out))
	testutil.AssertNoError(t, s.Abort(ctx, errors.New("give up")))
	testutil.AssertEqual(t, out.wasClosed(), true)
}

func TestWriterSinkKeepsUnderlyingOpen(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	out := &captureWriter{}
	sink := WriterSinkWithConfig(out, SinkConfig{CloseUnderlying: false})
	s := streams.NewWritable[[]byte](sink)
	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, w.Write(ctx, []byte("x")))
	testutil.AssertNoError(t, w.Close(ctx))
	testutil.AssertEqual(t, out.wasClosed(), false)
}

func TestWriterSinkErrorFailsStream(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	boom := errors.New("pipe burst")
	out := &captureWriter{err: boom}
	s := streams.NewWritable[[]byte](WriterSink(out))
	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)

	err = w.Write(ctx, []byte("x"))
	testutil.AssertErrorIs(t, err, boom)
	testutil.AssertEqual(t, streams.IsSinkError(err), true)
}

func TestStreamWriterCopiesChunks(t *testing.T) {
	out := &captureWriter{}
	s := streams.NewWritable[[]byte](WriterSink(out))
	sw, err := NewStreamWriter(s)
	testutil.AssertNoError(t, err)

	p := []byte("original")
	n, err := sw.Write(p)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, len(p))

	// The caller may reuse p immediately.
	copy(p, "clobber!")
	testutil.AssertNoError(t, sw.Close())
	testutil.AssertEqual(t, out.String(), "original")
}

func TestStreamWriterAfterClose(t *testing.T) {
	s := streams.NewWritable[[]byte](WriterSink(&captureWriter{}))
	sw, err := NewStreamWriter(s)
	testutil.AssertNoError(t, err)

	testutil.AssertNoError(t, sw.Close())
	testutil.AssertNoError(t, sw.Close())

	_, err = sw.Write([]byte("late"))
	testutil.AssertErrorIs(t, err, ErrWriterClosed)
	testutil.AssertNoError(t, sw.CloseWithError(errors.New("ignored")))
}

func TestStreamWriterCloseWithErrorAborts(t *testing.T) {
	var mu sync.Mutex
	var aborted error
	sink := streams.SinkFuncs[[]byte]{
		AbortFunc: func(reason error) error {
			mu.Lock()
			aborted = reason
			mu.Unlock()
			return nil
		},
	}
	s := streams.NewWritable[[]byte](sink)
	sw, err := NewStreamWriter(s)
	testutil.AssertNoError(t, err)

	boom := errors.New("upstream failed")
	testutil.AssertNoError(t, sw.CloseWithError(boom))

	mu.Lock()
	got := aborted
	mu.Unlock()
	testutil.AssertErrorIs(t, got, boom)
	testutil.AssertEqual(t, s.State(), streams.WritableStateErrored)
}

func TestNewStreamWriterRequiresUnlockedStream(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	s := streams.NewWritable[[]byte](WriterSink(&captureWriter{}))
	w, err := s.GetWriter()
	testutil.AssertNoError(t, err)

	_, err = NewStreamWriter(s)
	testutil.AssertErrorIs(t, err, streams.ErrLocked)
	testutil.AssertNoError(t, w.Close(ctx))
}

func TestCopyRoundTrip(t *testing.T) {
	data := make([]byte, 100_000)
	for i := range data {
		data[i] = byte(i % 251)
	}

	src := streams.NewReadableByteStream(ReaderSource(bytes.NewReader(data)))
	sr, err := NewStreamReader(src)
	testutil.AssertNoError(t, err)

	out := &captureWriter{}
	dst := streams.NewWritable[[]byte](WriterSink(out))
	sw, err := NewStreamWriter(dst)
	testutil.AssertNoError(t, err)

	n, err := io.Copy(sw, sr)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, n, int64(len(data)))
	testutil.AssertNoError(t, sw.Close())
	testutil.AssertNoError(t, sr.Close())

	testutil.AssertEqual(t, bytes.Equal([]byte(out.String()), data), true)
}

func TestStreamWriterFeedsLineReader(t *testing.T) {
	out := &captureWriter{}
	s := streams.NewWritable[[]byte](WriterSink(out))
	sw, err := NewStreamWriter(s)
	testutil.AssertNoError(t, err)

	_, err = io.Copy(sw, strings.NewReader("line one\nline two\n"))
	testutil.AssertNoError(t, err)
	testutil.AssertNoError(t, sw.Close())
	testutil.AssertEqual(t, out.String(), "line one\nline two\n")
}
