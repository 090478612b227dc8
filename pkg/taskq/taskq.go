package taskq

import (
	"context"
	"sync"
)

// Queue runs submitted functions one at a time, in submission order. Work
// is executed on a background goroutine that is spawned lazily on the
// first pending task and exits as soon as the queue drains, so an idle
// Queue holds no resources.
type Queue interface {
	// Post schedules fn to run after all previously posted tasks have
	// finished. It never runs fn on the calling goroutine.
	Post(fn func())

	// Wait blocks until the queue is idle (no pending and no running
	// task) or ctx is done.
	Wait(ctx context.Context) error

	// Len returns the number of pending tasks, excluding a running one.
	Len() int

	// Running reports whether a task is currently executing.
	Running() bool
}

// Config holds configuration for a Queue.
type Config struct {
	// OnPanic is called with the recovered value when a task panics.
	// When nil, panics are not recovered and take down the process.
	OnPanic func(recovered interface{})
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{}
}

// queue implements Queue.
type queue struct {
	config Config

	mu      sync.Mutex
	tasks   []func()
	running bool
	idle    chan struct{}
}

// New creates a new Queue with default configuration.
func New() Queue {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new Queue with the specified configuration.
func NewWithConfig(config Config) Queue {
	idle := make(chan struct{})
	close(idle)
	return &queue{config: config, idle: idle}
}

// Post implements Queue.Post.
func (q *queue) Post(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	if !q.running {
		q.running = true
		q.idle = make(chan struct{})
		go q.run()
	}
	q.mu.Unlock()
}

// Wait implements Queue.Wait.
func (q *queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len implements Queue.Len.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Running implements Queue.Running.
func (q *queue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// run drains the queue and exits when no work remains.
func (q *queue) run() {
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			close(q.idle)
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.exec(fn)
	}
}

func (q *queue) exec(fn func()) {
	if q.config.OnPanic != nil {
		defer func() {
			if r := recover(); r != nil {
				q.config.OnPanic(r)
			}
		}()
	}
	fn()
}
