package iobridge_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/vnykmshr/streamflow/pkg/iobridge"
	"github.com/vnykmshr/streamflow/pkg/streams"
)

// Example demonstrates reading an io.Reader through a byte stream.
func Example() {
	s := streams.NewReadableByteStream(iobridge.ReaderSource(strings.NewReader("streamed bytes")))

	sr, err := iobridge.NewStreamReader(s)
	if err != nil {
		panic(err)
	}
	defer sr.Close()

	data, err := io.ReadAll(sr)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data))

	// Output: streamed bytes
}

// Example_writerSink pipes a stream into a plain io.Writer.
func Example_writerSink() {
	ctx := context.Background()

	var out bytes.Buffer
	src := streams.NewReadableByteStream(iobridge.ReaderSource(strings.NewReader("pipe me")))
	dst := streams.NewWritable[[]byte](iobridge.WriterSink(&out))

	if err := src.PipeTo(ctx, dst, streams.PipeOptions{}); err != nil {
		panic(err)
	}
	fmt.Println(out.String())

	// Output: pipe me
}
