package streams

import "context"

// PipeOptions tunes how PipeTo propagates terminal conditions between
// the two streams it connects.
type PipeOptions struct {
	// PreventClose leaves the destination open after the source closes.
	PreventClose bool

	// PreventAbort leaves the destination untouched after the source
	// errors.
	PreventAbort bool

	// PreventCancel leaves the source untouched after the destination
	// errors or closes.
	PreventCancel bool
}

// PipeTo reads the stream to exhaustion and writes every chunk to dst,
// honoring dst's backpressure with a single outstanding write. Both
// streams are locked for the duration. On a terminal condition exactly
// one propagation runs, subject to opts, and PipeTo returns: nil once
// the source closed and dst finished closing, the failing side's error
// otherwise. Canceling ctx aborts dst and cancels the source.
func (s *ReadableStream[T]) PipeTo(ctx context.Context, dst *WritableStream[T], opts PipeOptions) error {
	reader, err := s.GetReader()
	if err != nil {
		return err
	}
	writer, err := dst.GetWriter()
	if err != nil {
		reader.ReleaseLock()
		return err
	}
	defer writer.ReleaseLock()
	defer reader.ReleaseLock()

	cancelSrc := func(reason error) {
		if !opts.PreventCancel {
			_ = reader.Cancel(context.Background(), reason)
		}
	}
	abortDst := func(reason error) {
		if !opts.PreventAbort {
			_ = writer.Abort(context.Background(), reason)
		}
	}

	for {
		select {
		case <-ctx.Done():
			reason := ctx.Err()
			abortDst(reason)
			cancelSrc(reason)
			return reason
		default:
		}

		// A destination that died out from under the pipe is noticed
		// before consuming another chunk.
		switch dst.State() {
		case WritableStateErroring, WritableStateErrored:
			e := dst.Err()
			cancelSrc(e)
			return e
		case WritableStateClosing, WritableStateClosed:
			cancelSrc(ErrStreamClosed)
			return ErrStreamClosed
		}

		chunk, done, rerr := reader.Read(ctx)
		if rerr != nil {
			if ctx.Err() != nil {
				abortDst(rerr)
				cancelSrc(rerr)
				return rerr
			}
			abortDst(rerr)
			return rerr
		}
		if done {
			if opts.PreventClose {
				return nil
			}
			return writer.Close(ctx)
		}

		if werr := writer.Write(ctx, chunk); werr != nil {
			if ctx.Err() != nil {
				abortDst(werr)
				cancelSrc(werr)
				return werr
			}
			cancelSrc(werr)
			return werr
		}
	}
}

// PipeThrough pipes src into the transform's writable side and returns
// the readable side. The pipe runs in the background with opts; its
// terminal condition surfaces on the returned stream through the
// transform's own error propagation.
func PipeThrough[In, Out any](ctx context.Context, src *ReadableStream[In], through *TransformStream[In, Out], opts PipeOptions) *ReadableStream[Out] {
	go func() {
		_ = src.PipeTo(ctx, through.Writable(), opts)
	}()
	return through.Readable()
}
