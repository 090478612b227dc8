package streams

import "math"

// Strategy controls queuing for one side of a stream: how large the
// internal queue may grow before backpressure engages, and how much each
// chunk counts against that limit.
type Strategy[T any] struct {
	// HighWaterMark is the total queue size at which backpressure is
	// asserted. Zero means any queued chunk asserts backpressure; +Inf
	// disables backpressure. Negative and NaN values are treated as zero.
	HighWaterMark float64

	// Size computes the queue cost of one chunk. It must be pure and
	// return a non-negative finite number. A nil Size counts every
	// chunk as 1.
	Size func(chunk T) (float64, error)
}

// CountStrategy returns a strategy that counts each chunk as 1.
func CountStrategy[T any](highWaterMark float64) Strategy[T] {
	return Strategy[T]{HighWaterMark: highWaterMark}
}

// ByteLengthStrategy returns a strategy that counts each chunk by its
// length in bytes.
func ByteLengthStrategy(highWaterMark float64) Strategy[[]byte] {
	return Strategy[[]byte]{
		HighWaterMark: highWaterMark,
		Size: func(chunk []byte) (float64, error) {
			return float64(len(chunk)), nil
		},
	}
}

// normalizedHighWaterMark clamps a configured high-water mark into the
// valid range.
func normalizedHighWaterMark(hwm float64) float64 {
	if math.IsNaN(hwm) || hwm < 0 {
		return 0
	}
	return hwm
}

// chunkSize runs the strategy's size function on chunk and validates the
// result. A failure here errors the stream at the call site.
func (s Strategy[T]) chunkSize(chunk T) (float64, error) {
	if s.Size == nil {
		return 1, nil
	}
	size, err := s.Size(chunk)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		return 0, ErrInvalidSize
	}
	return size, nil
}
