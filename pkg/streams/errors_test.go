package streams

import (
	"errors"
	"testing"

	"github.com/vnykmshr/streamflow/internal/testutil"
)

func TestProtocolErrorWrapsSentinel(t *testing.T) {
	err := protocolViolation(ErrLocked)

	testutil.AssertEqual(t, err.Error(), "stream protocol: stream is locked")
	testutil.AssertErrorIs(t, err, ErrLocked)
	testutil.AssertEqual(t, IsProtocolViolation(err), true)
	testutil.AssertEqual(t, IsSourceError(err), false)
	testutil.AssertEqual(t, IsSinkError(err), false)
}

func TestStreamErrorCarriesKindAndCause(t *testing.T) {
	boom := errors.New("disk full")
	err := error(&StreamError{Kind: SinkError, Err: boom})

	testutil.AssertEqual(t, err.Error(), "sink error: disk full")
	testutil.AssertErrorIs(t, err, boom)
	testutil.AssertEqual(t, IsSinkError(err), true)
	testutil.AssertEqual(t, IsSourceError(err), false)

	err = error(&StreamError{Kind: SourceError, Err: boom})
	testutil.AssertEqual(t, err.Error(), "source error: disk full")
	testutil.AssertEqual(t, IsSourceError(err), true)
	testutil.AssertEqual(t, IsSinkError(err), false)
}

func TestErrorKindString(t *testing.T) {
	testutil.AssertEqual(t, SourceError.String(), "source")
	testutil.AssertEqual(t, SinkError.String(), "sink")
	testutil.AssertEqual(t, ErrorKind(99).String(), "unknown")
}

func TestClassifiersIgnoreForeignErrors(t *testing.T) {
	plain := errors.New("no wrapper here")
	testutil.AssertEqual(t, IsProtocolViolation(plain), false)
	testutil.AssertEqual(t, IsSourceError(plain), false)
	testutil.AssertEqual(t, IsSinkError(plain), false)
	testutil.AssertEqual(t, IsProtocolViolation(nil), false)
}
