// Package integration contains integration tests that verify cross-package functionality.
// These tests ensure that different components work together correctly in realistic scenarios.
package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vnykmshr/streamflow/internal/testutil"
	"github.com/vnykmshr/streamflow/pkg/streams"
)

// intSource returns a source that enqueues 0..n-1 one chunk per pull.
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

// collectSink returns a sink appending every chunk to a shared slice.
func collectSink[T any](mu *sync.Mutex, out *[]T) streams.Sink[T] {
	return streams.SinkFuncs[T]{
		WriteFunc: func(chunk T, _ *streams.WritableController[T]) error {
			mu.Lock()
			*out = append(*out, chunk)
			mu.Unlock()
			return nil
		},
	}
}

// TestTransformPipelineEndToEnd verifies that chunks flow source -> transform ->
// transform -> sink in order with both stages applied.
func TestTransformPipelineEndToEnd(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	src := streams.NewReadable[int](intSource(10))

	evens := streams.NewTransform[int, int](streams.TransformerFuncs[int, int]{
		TransformFunc: func(n int, ctrl *streams.TransformController[int, int]) error {
			if n%2 != 0 {
				return nil
			}
			return ctrl.Enqueue(n)
		},
	})

	squared := streams.NewTransform[int, int](streams.TransformerFuncs[int, int]{
		TransformFunc: func(n int, ctrl *streams.TransformController[int, int]) error {
			return ctrl.Enqueue(n * n)
		},
	})

	stage1 := streams.PipeThrough(ctx, src, evens, streams.PipeOptions{})
	stage2 := streams.PipeThrough(ctx, stage1, squared, streams.PipeOptions{})

	var mu sync.Mutex
	var got []int
	dst := streams.NewWritable[int](collectSink(&mu, &got))

	testutil.AssertNoError(t, stage2.PipeTo(ctx, dst, streams.PipeOptions{}))

	want := []int{0, 4, 16, 36, 64}
	testutil.AssertEqual(t, len(got), len(want))
	for i, v := range want {
		testutil.AssertEqual(t, got[i], v)
	}

	testutil.AssertEqual(t, src.State(), streams.ReadableStateClosed)
	testutil.AssertEqual(t, dst.State(), streams.WritableStateClosed)

	t.Logf("Pipeline delivered %d chunks through two transform stages", len(got))
}

// TestPipeBackpressureAgainstSlowSink verifies that a fast source piped into a
// slow sink engages backpressure and still delivers every chunk in order.
func TestPipeBackpressureAgainstSlowSink(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	const chunks = 10

	src := streams.NewReadable[int](intSource(chunks))

	var engaged atomic.Int32
	var mu sync.Mutex
	var got []int
	dst := streams.NewWritableWithConfig[int](streams.SinkFuncs[int]{
		WriteFunc: func(chunk int, _ *streams.WritableController[int]) error {
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			got = append(got, chunk)
			mu.Unlock()
			return nil
		},
	}, streams.WritableConfig[int]{
		Strategy: streams.CountStrategy[int](2),
		OnBackpressure: func(on bool) {
			if on {
				engaged.Add(1)
			}
		},
	})

	testutil.AssertNoError(t, src.PipeTo(ctx, dst, streams.PipeOptions{}))

	testutil.AssertEqual(t, len(got), chunks)
	for i := 0; i < chunks; i++ {
		testutil.AssertEqual(t, got[i], i)
	}
	if engaged.Load() == 0 {
		t.Error("backpressure never engaged against a slow sink")
	}

	t.Logf("Delivered %d chunks with %d backpressure activations", chunks, engaged.Load())
}

// TestSinkFailurePropagatesUpstream verifies that a sink write failure aborts
// the pipe, surfaces as a sink error, and cancels the source.
func TestSinkFailurePropagatesUpstream(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var canceled atomic.Bool
	next := 0
	src := streams.NewReadable[int](streams.SourceFuncs[int]{
		PullFunc: func(ctrl *streams.DefaultController[int]) error {
			next++
			return ctrl.Enqueue(next)
		},
		CancelFunc: func(error) error {
			canceled.Store(true)
			return nil
		},
	})

	boom := errors.New("disk full")
	writes := 0
	dst := streams.NewWritable[int](streams.SinkFuncs[int]{
		WriteFunc: func(int, *streams.WritableController[int]) error {
			writes++
			if writes == 3 {
				return boom
			}
			return nil
		},
	})

	err := src.PipeTo(ctx, dst, streams.PipeOptions{})
	testutil.AssertError(t, err)
	testutil.AssertErrorIs(t, err, boom)
	if !streams.IsSinkError(err) {
		t.Errorf("expected a sink error, got %v", err)
	}

	testutil.Eventually(t, time.Second, canceled.Load, "source never canceled")
	testutil.AssertEqual(t, dst.State(), streams.WritableStateErrored)
}

// TestContextCancellationTearsDownPipeline verifies that canceling the pipe
// context aborts the destination and cancels the source.
func TestContextCancellationTearsDownPipeline(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	var canceled atomic.Bool
	src := streams.NewReadable[int](streams.SourceFuncs[int]{
		PullFunc: func(ctrl *streams.DefaultController[int]) error {
			return ctrl.Enqueue(1)
		},
		CancelFunc: func(error) error {
			canceled.Store(true)
			return nil
		},
	})

	dst := streams.NewWritable[int](streams.SinkFuncs[int]{
		WriteFunc: func(int, *streams.WritableController[int]) error {
			time.Sleep(time.Millisecond)
			return nil
		},
	})

	pctx, pcancel := context.WithCancel(ctx)
	res := make(chan error, 1)
	go func() {
		res <- src.PipeTo(pctx, dst, streams.PipeOptions{})
	}()

	time.Sleep(20 * time.Millisecond)
	pcancel()

	select {
	case err := <-res:
		testutil.AssertErrorIs(t, err, context.Canceled)
	case <-ctx.Done():
		t.Fatal("pipe did not return after context cancellation")
	}

	testutil.Eventually(t, time.Second, canceled.Load, "source never canceled")

	t.Log("Pipeline tore down cleanly after context cancellation")
}

// TestTeeFanOutToTwoSinks verifies that a teed stream can feed two pipes
// concurrently with every chunk reaching both sinks.
func TestTeeFanOutToTwoSinks(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	const chunks = 20

	src := streams.NewReadable[int](intSource(chunks))
	b1, b2, err := src.Tee()
	testutil.AssertNoError(t, err)

	var mu1, mu2 sync.Mutex
	var got1, got2 []int
	dst1 := streams.NewWritable[int](collectSink(&mu1, &got1))
	dst2 := streams.NewWritable[int](collectSink(&mu2, &got2))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = b1.PipeTo(ctx, dst1, streams.PipeOptions{})
	}()
	go func() {
		defer wg.Done()
		errs[1] = b2.PipeTo(ctx, dst2, streams.PipeOptions{})
	}()
	wg.Wait()

	testutil.AssertNoError(t, errs[0])
	testutil.AssertNoError(t, errs[1])

	for _, got := range [][]int{got1, got2} {
		testutil.AssertEqual(t, len(got), chunks)
		for i := 0; i < chunks; i++ {
			testutil.AssertEqual(t, got[i], i)
		}
	}

	t.Logf("Fanned %d chunks out to two sinks", chunks)
}
