package streams

import (
	"log/slog"
	"sync"

	"github.com/vnykmshr/streamflow/pkg/deferred"
	"github.com/vnykmshr/streamflow/pkg/metrics"
)

// Transformer turns chunks written to a transform's writable side into
// chunks readable from its readable side. The engine invokes Start,
// Transform and Flush strictly one at a time.
type Transformer[In, Out any] interface {
	// Start is called exactly once, before any Transform. Returning an
	// error errors both sides.
	Start(ctrl *TransformController[In, Out]) error

	// Transform consumes one written chunk. It runs only while the
	// readable side has capacity and may enqueue any number of chunks.
	// Returning an error errors both sides.
	Transform(chunk In, ctrl *TransformController[In, Out]) error

	// Flush runs after the final Transform, before the readable side
	// closes. Returning an error errors both sides.
	Flush(ctrl *TransformController[In, Out]) error

	// Cancel tears the transformer down when either side is canceled or
	// aborted. Its failure is best-effort and never surfaced to the
	// canceling caller.
	Cancel(reason error) error
}

// TransformerFuncs adapts plain functions to the Transformer interface.
// Nil Start, Flush and Cancel act as immediate successes; a nil
// Transform discards chunks. Use NewPassThrough for identity streams.
type TransformerFuncs[In, Out any] struct {
	StartFunc     func(ctrl *TransformController[In, Out]) error
	TransformFunc func(chunk In, ctrl *TransformController[In, Out]) error
	FlushFunc     func(ctrl *TransformController[In, Out]) error
	CancelFunc    func(reason error) error
}

// Start implements Transformer.
func (t TransformerFuncs[In, Out]) Start(ctrl *TransformController[In, Out]) error {
	if t.StartFunc == nil {
		return nil
	}
	return t.StartFunc(ctrl)
}

// Transform implements Transformer.
func (t TransformerFuncs[In, Out]) Transform(chunk In, ctrl *TransformController[In, Out]) error {
	if t.TransformFunc == nil {
		return nil
	}
	return t.TransformFunc(chunk, ctrl)
}

// Flush implements Transformer.
func (t TransformerFuncs[In, Out]) Flush(ctrl *TransformController[In, Out]) error {
	if t.FlushFunc == nil {
		return nil
	}
	return t.FlushFunc(ctrl)
}

// Cancel implements Transformer.
func (t TransformerFuncs[In, Out]) Cancel(reason error) error {
	if t.CancelFunc == nil {
		return nil
	}
	return t.CancelFunc(reason)
}

// TransformConfig configures a transform stream.
type TransformConfig[In, Out any] struct {
	// WritableStrategy sizes the writable side. Default is count-based
	// with a high-water mark of 1.
	WritableStrategy Strategy[In]

	// ReadableStrategy sizes the readable side. Default is count-based
	// with a high-water mark of 0, so transformation is driven entirely
	// by reader demand.
	ReadableStrategy Strategy[Out]

	Logger  *slog.Logger
	Metrics *metrics.Registry
	Name    string
}

// DefaultTransformConfig returns the default transform configuration.
func DefaultTransformConfig[In, Out any]() TransformConfig[In, Out] {
	return TransformConfig[In, Out]{
		WritableStrategy: CountStrategy[In](1),
		ReadableStrategy: CountStrategy[Out](0),
	}
}

// TransformStream couples a writable side to a readable side through a
// Transformer. Chunks written to Writable are transformed and surface on
// Readable; the reader's demand propagates back to the writer as
// backpressure.
type TransformStream[In, Out any] struct {
	transformer Transformer[In, Out]
	readable    *ReadableStream[Out]
	writable    *WritableStream[In]
	rctrl       *DefaultController[Out]
	ctrl        *TransformController[In, Out]

	// mu guards the backpressure toggle shared by both sides.
	mu                 sync.Mutex
	backpressure       bool
	backpressureChange *deferred.Deferred[deferred.Void]

	// cancelOnce collapses concurrent teardown of both sides into one
	// transformer Cancel.
	cancelOnce sync.Once
}

// NewTransform creates a transform stream over transformer with the
// default configuration.
func NewTransform[In, Out any](transformer Transformer[In, Out]) *TransformStream[In, Out] {
	return NewTransformWithConfig(transformer, DefaultTransformConfig[In, Out]())
}

// NewTransformWithConfig creates a transform stream over transformer
// with the specified configuration.
func NewTransformWithConfig[In, Out any](transformer Transformer[In, Out], config TransformConfig[In, Out]) *TransformStream[In, Out] {
	t := &TransformStream[In, Out]{
		transformer:        transformer,
		backpressure:       true,
		backpressureChange: deferred.New[deferred.Void](),
	}
	t.ctrl = &TransformController[In, Out]{t: t}
	t.readable = NewReadableWithConfig[Out](&transformSource[In, Out]{t: t}, ReadableConfig[Out]{
		Strategy: config.ReadableStrategy,
		Logger:   config.Logger,
		Metrics:  config.Metrics,
		Name:     config.Name,
	})
	t.rctrl = t.readable.ctrl.(*DefaultController[Out])
	t.writable = NewWritableWithConfig[In](&transformSink[In, Out]{t: t}, WritableConfig[In]{
		Strategy: config.WritableStrategy,
		Logger:   config.Logger,
		Metrics:  config.Metrics,
		Name:     config.Name,
	})
	return t
}

// NewPassThrough creates an identity transform stream: chunks written to
// the writable side surface unchanged on the readable side, subject to
// both sides' backpressure.
func NewPassThrough[T any]() *TransformStream[T, T] {
	return NewTransform[T, T](TransformerFuncs[T, T]{
		TransformFunc: func(chunk T, ctrl *TransformController[T, T]) error {
			return ctrl.Enqueue(chunk)
		},
	})
}

// Readable returns the transform's readable side.
func (t *TransformStream[In, Out]) Readable() *ReadableStream[Out] {
	return t.readable
}

// Writable returns the transform's writable side.
func (t *TransformStream[In, Out]) Writable() *WritableStream[In] {
	return t.writable
}

// setBackpressureLocked flips the shared toggle and wakes whichever side
// is waiting on the old value.
func (t *TransformStream[In, Out]) setBackpressureLocked(bp bool) []func() {
	if bp == t.backpressure {
		return nil
	}
	t.backpressure = bp
	change := t.backpressureChange
	t.backpressureChange = deferred.New[deferred.Void]()
	return []func(){func() { change.Resolve(deferred.Void{}) }}
}

// unblock wakes both sides without changing the toggle; used on
// teardown so no collaborator stays parked forever.
func (t *TransformStream[In, Out]) unblock() {
	t.mu.Lock()
	change := t.backpressureChange
	t.backpressureChange = deferred.New[deferred.Void]()
	t.mu.Unlock()
	change.Resolve(deferred.Void{})
}

func (t *TransformStream[In, Out]) errorWritable(e error) {
	t.writable.controller.Error(e)
}

func (t *TransformStream[In, Out]) cancelTransformer(reason error) error {
	var err error
	t.cancelOnce.Do(func() { err = t.transformer.Cancel(reason) })
	return err
}

// TransformController is the transformer-facing handle: it enqueues onto
// the readable side and coordinates errors across both sides.
type TransformController[In, Out any] struct {
	t *TransformStream[In, Out]
}

// Enqueue surfaces chunk on the readable side and recomputes the
// backpressure seen by the writable side. An enqueue failure errors the
// whole transform.
func (c *TransformController[In, Out]) Enqueue(chunk Out) error {
	t := c.t
	if err := t.rctrl.Enqueue(chunk); err != nil {
		t.errorWritable(err)
		t.unblock()
		return err
	}

	t.mu.Lock()
	fns := t.setBackpressureLocked(t.rctrl.DesiredSize() <= 0)
	t.mu.Unlock()
	runAll(fns)
	return nil
}

// Error errors both sides of the transform with e.
func (c *TransformController[In, Out]) Error(e error) {
	t := c.t
	t.rctrl.Error(e)
	t.errorWritable(e)
	t.unblock()
}

// Terminate closes the readable side and errors the writable side with
// ErrTerminated; in-flight writes unblock and reject.
func (c *TransformController[In, Out]) Terminate() {
	t := c.t
	if err := t.rctrl.Close(); err != nil && !IsProtocolViolation(err) {
		t.rctrl.Error(err)
	}
	t.errorWritable(ErrTerminated)
	t.unblock()
}

// DesiredSize returns the readable side's remaining appetite.
func (c *TransformController[In, Out]) DesiredSize() float64 {
	return c.t.rctrl.DesiredSize()
}

// transformSource adapts the shared backpressure toggle into the
// readable side's pull protocol. Pull lowers backpressure, releasing a
// parked write, and completes on the next toggle; with the default
// zero high-water mark this yields one transform per unit of reader
// demand.
type transformSource[In, Out any] struct {
	t *TransformStream[In, Out]
}

func (p *transformSource[In, Out]) Start(ctrl *DefaultController[Out]) error {
	return nil
}

func (p *transformSource[In, Out]) Pull(ctrl *DefaultController[Out]) error {
	t := p.t
	t.mu.Lock()
	var fns []func()
	if t.backpressure {
		fns = t.setBackpressureLocked(false)
	}
	change := t.backpressureChange
	t.mu.Unlock()
	runAll(fns)

	// Hold the pull until the toggle moves again, so demand is conveyed
	// once per cycle rather than in a hot loop.
	<-change.Done()
	return nil
}

func (p *transformSource[In, Out]) Cancel(reason error) error {
	t := p.t
	err := t.cancelTransformer(reason)
	t.errorWritable(reason)
	t.unblock()
	return err
}

// transformSink adapts the transformer into the writable side's sink
// protocol.
type transformSink[In, Out any] struct {
	t *TransformStream[In, Out]
}

func (k *transformSink[In, Out]) Start(wctrl *WritableController[In]) error {
	t := k.t
	if err := t.transformer.Start(t.ctrl); err != nil {
		t.rctrl.Error(err)
		t.unblock()
		return err
	}
	return nil
}

func (k *transformSink[In, Out]) Write(chunk In, wctrl *WritableController[In]) error {
	t := k.t
	for {
		t.mu.Lock()
		if !t.backpressure {
			t.mu.Unlock()
			break
		}
		change := t.backpressureChange
		t.mu.Unlock()

		select {
		case <-change.Done():
		case <-wctrl.ErrorSignal():
			return t.writable.Err()
		}
	}
	if err := t.transformer.Transform(chunk, t.ctrl); err != nil {
		t.rctrl.Error(err)
		t.unblock()
		return err
	}
	return nil
}

func (k *transformSink[In, Out]) Close() error {
	t := k.t
	defer t.unblock()
	if err := t.transformer.Flush(t.ctrl); err != nil {
		t.rctrl.Error(err)
		return err
	}
	if err := t.rctrl.Close(); err != nil && !IsProtocolViolation(err) {
		return err
	}
	return nil
}

func (k *transformSink[In, Out]) Abort(reason error) error {
	t := k.t
	err := t.cancelTransformer(reason)
	t.rctrl.Error(reason)
	t.unblock()
	return err
}
