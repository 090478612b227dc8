/*
Package deferred provides a single-assignment asynchronous completion cell.

A Deferred starts pending and is settled exactly once, either resolved with
a value or rejected with an error. Once settled it never changes; later
settle attempts are ignored. Any number of goroutines can await the outcome
and all of them observe the same result. This is the completion primitive
the streamflow engine hands out for every asynchronous operation: read
outcomes, write completions, readiness signals, close and abort results.

Basic usage:

	d := deferred.New[string]()

	go func() {
		value, err := fetch()
		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(value)
	}()

	value, err := d.Await(ctx)

Key properties:

  - Single assignment: the first Resolve or Reject wins; both report
    whether they performed the settlement.
  - Multiple observers: Await, Done and OnSettle can all be used
    concurrently; all see the identical outcome.
  - Ordered notification: observers registered with OnSettle before
    settlement run in registration order on the settling goroutine.
  - Context-aware waiting: Await returns ctx.Err() on expiry without
    disturbing the cell.

Pre-settled cells:

	ok := deferred.ResolvedWith(42)
	bad := deferred.RejectedWith[int](errors.New("no"))

Inspection without blocking:

	if d.Settled() {
		value, err := d.Result()
		...
	}

For cells that carry no payload use the Void alias:

	closed := deferred.New[deferred.Void]()
	closed.Resolve(deferred.Void{})
*/
package deferred
