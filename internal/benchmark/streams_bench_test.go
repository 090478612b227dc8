package benchmark

import (
	"context"
	"testing"

	"github.com/vnykmshr/streamflow/pkg/streams"
)

// intSource enqueues 0..n-1 one chunk per pull.
func intSource(n int) streams.Source[int] {
	next := 0
	return streams.SourceFuncs[int]{
		PullFunc: func(ctrl *streams.DefaultController[int]) error {
			if next >= n {
				ctrl.Close()
				return nil
			}
			err := ctrl.Enqueue(next)
			next++
			return err
		},
	}
}

// nullSink discards every chunk.
func nullSink[T any]() streams.Sink[T] {
	return streams.SinkFuncs[T]{
		WriteFunc: func(T, *streams.WritableController[T]) error { return nil },
	}
}

// BenchmarkPipeThroughput measures end-to-end pipe transfer.
func BenchmarkPipeThroughput(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		b.Run(sizeLabel(size), func(b *testing.B) {
			b.ReportAllocs()
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				src := streams.NewReadable[int](intSource(size))
				dst := streams.NewWritable[int](nullSink[int]())
				if err := src.PipeTo(ctx, dst, streams.PipeOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkReadLoop measures direct reader consumption without a pipe.
func BenchmarkReadLoop(b *testing.B) {
	sizes := []int{100, 1000, 10000}

	for _, size := range sizes {
		b.Run(sizeLabel(size), func(b *testing.B) {
			b.ReportAllocs()
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				s := streams.NewReadable[int](intSource(size))
				reader, err := s.GetReader()
				if err != nil {
					b.Fatal(err)
				}
				for {
					_, done, err := reader.Read(ctx)
					if err != nil {
						b.Fatal(err)
					}
					if done {
						break
					}
				}
			}
		})
	}
}

// BenchmarkTransformStage measures piping through one transform.
func BenchmarkTransformStage(b *testing.B) {
	sizes := []int{100, 1000}

	for _, size := range sizes {
		b.Run(sizeLabel(size), func(b *testing.B) {
			b.ReportAllocs()
			ctx := context.Background()
			for i := 0; i < b.N; i++ {
				src := streams.NewReadable[int](intSource(size))
				double := streams.NewTransform[int, int](streams.TransformerFuncs[int, int]{
					TransformFunc: func(n int, ctrl *streams.TransformController[int, int]) error {
						return ctrl.Enqueue(n * 2)
					},
				})
				out := streams.PipeThrough(ctx, src, double, streams.PipeOptions{})
				dst := streams.NewWritable[int](nullSink[int]())
				if err := out.PipeTo(ctx, dst, streams.PipeOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTeeFanOut measures teeing into two drained branches.
func BenchmarkTeeFanOut(b *testing.B) {
	const size = 1000

	b.ReportAllocs()
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		src := streams.NewReadable[int](intSource(size))
		b1, b2, err := src.Tee()
		if err != nil {
			b.Fatal(err)
		}

		done := make(chan error, 2)
		for _, branch := range []*streams.ReadableStream[int]{b1, b2} {
			go func(s *streams.ReadableStream[int]) {
				done <- s.PipeTo(ctx, streams.NewWritable[int](nullSink[int]()), streams.PipeOptions{})
			}(branch)
		}
		for j := 0; j < 2; j++ {
			if err := <-done; err != nil {
				b.Fatal(err)
			}
		}
	}
}

// sizeLabel returns a readable label for benchmark sizes.
func sizeLabel(size int) string {
	switch {
	case size >= 10000:
		return "10k"
	case size >= 1000:
		return "1k"
	case size >= 100:
		return "100"
	default:
		return "10"
	}
}
