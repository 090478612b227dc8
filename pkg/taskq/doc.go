/*
Package taskq provides a serial task queue: a "run later, preserve
submission order" service.

Tasks posted to a Queue run strictly one at a time, in the order they were
posted, on a background goroutine. The goroutine is spawned lazily when
work arrives and exits when the queue drains, so idle queues cost nothing
and never leak.

The streamflow engine gives every stream such a lane and funnels ordered
collaborator work through it: source pulls, sink writes, close handling.
Serializing through a lane is what turns "at most one pull in flight" and
"writes are delivered in submission order" from conventions into
structural guarantees.

Basic usage:

	q := taskq.New()

	q.Post(func() { first() })
	q.Post(func() { second() }) // runs only after first returns

	// Wait for the queue to go idle.
	if err := q.Wait(ctx); err != nil {
		log.Printf("queue still busy: %v", err)
	}

Tasks may block; later tasks simply wait their turn. Post never runs the
task on the calling goroutine, even when the queue is idle, so it is safe
to post from inside locked regions.

Panics in tasks are fatal by default. Supply Config.OnPanic to recover
them:

	q := taskq.NewWithConfig(taskq.Config{
		OnPanic: func(r interface{}) { log.Printf("task panic: %v", r) },
	})
*/
package taskq
