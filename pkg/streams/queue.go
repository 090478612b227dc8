package streams

// queueEntry is one sized chunk held by a default controller.
type queueEntry[T any] struct {
	value T
	size  float64
}

// sizedQueue is an ordered sequence of sized entries with a running total.
// Invariant: totalSize equals the sum of the queued entries' sizes.
type sizedQueue[T any] struct {
	entries   []queueEntry[T]
	totalSize float64
}

func (q *sizedQueue[T]) push(value T, size float64) {
	q.entries = append(q.entries, queueEntry[T]{value: value, size: size})
	q.totalSize += size
}

func (q *sizedQueue[T]) pop() queueEntry[T] {
	entry := q.entries[0]
	var zero queueEntry[T]
	q.entries[0] = zero
	q.entries = q.entries[1:]
	q.totalSize -= entry.size
	if len(q.entries) == 0 {
		// Rounding drift from fractional sizes must not accumulate.
		q.totalSize = 0
	}
	return entry
}

func (q *sizedQueue[T]) peek() queueEntry[T] { return q.entries[0] }

func (q *sizedQueue[T]) len() int { return len(q.entries) }

func (q *sizedQueue[T]) total() float64 { return q.totalSize }

func (q *sizedQueue[T]) reset() {
	q.entries = nil
	q.totalSize = 0
}

// byteQueueEntry is one byte chunk held by a byte controller. The entry
// owns buffer exclusively; offset and length delimit the unconsumed
// window.
type byteQueueEntry struct {
	buffer     []byte
	byteOffset int
	byteLength int
}

// byteQueue is the byte controller's queue. totalSize counts unconsumed
// bytes across all entries.
type byteQueue struct {
	entries   []*byteQueueEntry
	totalSize float64
}

func (q *byteQueue) push(buffer []byte, byteOffset, byteLength int) {
	q.entries = append(q.entries, &byteQueueEntry{
		buffer:     buffer,
		byteOffset: byteOffset,
		byteLength: byteLength,
	})
	q.totalSize += float64(byteLength)
}

// pop removes and returns the oldest entry whole.
func (q *byteQueue) pop() *byteQueueEntry {
	entry := q.entries[0]
	q.entries[0] = nil
	q.entries = q.entries[1:]
	q.totalSize -= float64(entry.byteLength)
	return entry
}

func (q *byteQueue) peek() *byteQueueEntry { return q.entries[0] }

// consume advances the head entry by n bytes, removing it once empty.
// Callers must not consume more than the head holds.
func (q *byteQueue) consume(n int) {
	head := q.entries[0]
	if n == head.byteLength {
		q.entries[0] = nil
		q.entries = q.entries[1:]
	} else {
		head.byteOffset += n
		head.byteLength -= n
	}
	q.totalSize -= float64(n)
}

func (q *byteQueue) len() int { return len(q.entries) }

func (q *byteQueue) total() float64 { return q.totalSize }

func (q *byteQueue) reset() {
	q.entries = nil
	q.totalSize = 0
}
