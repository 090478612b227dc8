package deferred

import (
	"context"
	"errors"
	"sync"
)

// State describes the settlement state of a Deferred.
type State int

const (
	// Pending means the Deferred has not been settled yet.
	Pending State = iota

	// Resolved means the Deferred was settled with a value.
	Resolved

	// Rejected means the Deferred was settled with an error.
	Rejected
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ErrPending is returned by Result when the Deferred is not settled yet.
var ErrPending = errors.New("deferred is not settled")

// Void is the value type for Deferreds that carry no payload.
type Void = struct{}

// Deferred is a single-assignment asynchronous cell. It starts pending and
// is settled exactly once, either with a value (Resolve) or with an error
// (Reject). Later settle attempts are ignored. Any number of goroutines may
// await the outcome; all observe the same result.
type Deferred[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	state     State
	value     T
	err       error
	observers []func(T, error)
}

// New creates a pending Deferred.
func New[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// ResolvedWith creates a Deferred already settled with value.
func ResolvedWith[T any](value T) *Deferred[T] {
	d := New[T]()
	d.Resolve(value)
	return d
}

// RejectedWith creates a Deferred already settled with err.
func RejectedWith[T any](err error) *Deferred[T] {
	d := New[T]()
	d.Reject(err)
	return d
}

// Resolve settles the Deferred with value. It reports whether this call
// performed the settlement; false means the Deferred was already settled
// and the value was ignored.
func (d *Deferred[T]) Resolve(value T) bool {
	return d.settle(Resolved, value, nil)
}

// Reject settles the Deferred with err. It reports whether this call
// performed the settlement. A nil err is recorded as rejected with a nil
// error; callers should pass a real error.
func (d *Deferred[T]) Reject(err error) bool {
	var zero T
	return d.settle(Rejected, zero, err)
}

func (d *Deferred[T]) settle(state State, value T, err error) bool {
	d.mu.Lock()
	if d.state != Pending {
		d.mu.Unlock()
		return false
	}
	d.state = state
	d.value = value
	d.err = err
	observers := d.observers
	d.observers = nil
	close(d.done)
	d.mu.Unlock()

	// Observers run on the settling goroutine, in registration order.
	for _, fn := range observers {
		fn(value, err)
	}
	return true
}

// State returns the current settlement state.
func (d *Deferred[T]) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Settled reports whether the Deferred has been resolved or rejected.
func (d *Deferred[T]) Settled() bool {
	return d.State() != Pending
}

// Done returns a channel that is closed once the Deferred settles.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Result returns the outcome. If the Deferred is still pending it returns
// the zero value and ErrPending; use Await or Done to wait first.
func (d *Deferred[T]) Result() (T, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Pending {
		var zero T
		return zero, ErrPending
	}
	return d.value, d.err
}

// Await blocks until the Deferred settles or ctx is done. On settlement it
// returns the outcome; on context expiry it returns ctx.Err() and leaves
// the Deferred untouched.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.value, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnSettle registers fn to run when the Deferred settles. Observers
// registered before settlement run in registration order on the goroutine
// that settles the Deferred. If the Deferred is already settled, fn runs
// immediately on the calling goroutine.
func (d *Deferred[T]) OnSettle(fn func(value T, err error)) {
	d.mu.Lock()
	if d.state == Pending {
		d.observers = append(d.observers, fn)
		d.mu.Unlock()
		return
	}
	value, err := d.value, d.err
	d.mu.Unlock()
	fn(value, err)
}
