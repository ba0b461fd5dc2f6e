// Package limiter bounds the number of simultaneously in-flight store calls.
//
// Excess work queues in submission order and is admitted one task per freed
// slot. Queued-but-not-started work cannot be cancelled through the limiter
// itself; a waiter whose context ends simply stops waiting.
package limiter

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Limiter is a FIFO slot pool with a fixed capacity
type Limiter struct {
	max    int
	active int
	queue  []chan struct{} // waiters, head admitted first
	logger zerolog.Logger
	mu     sync.Mutex
}

// New creates a Limiter admitting at most max concurrent tasks
func New(max int, logger zerolog.Logger) *Limiter {
	if max < 1 {
		max = 1
	}
	return &Limiter{
		max:    max,
		logger: logger.With().Str("component", "limiter").Logger(),
	}
}

// Acquire blocks until a slot is free or ctx ends.
// Waiters are admitted in strict arrival order.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.active < l.max {
		l.active++
		l.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	l.queue = append(l.queue, ready)
	queued := len(l.queue)
	l.mu.Unlock()

	l.logger.Debug().Int("queued", queued).Msg("slot queue full, waiting")

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		l.mu.Lock()
		for i, ch := range l.queue {
			if ch == ready {
				l.queue = append(l.queue[:i], l.queue[i+1:]...)
				l.mu.Unlock()
				return ctx.Err()
			}
		}
		l.mu.Unlock()
		// Already handed a slot concurrently; give it back.
		<-ready
		l.Release()
		return ctx.Err()
	}
}

// Release frees a slot. If waiters are queued the slot passes directly to the
// head waiter without decrementing the active count.
func (l *Limiter) Release() {
	l.mu.Lock()
	if len(l.queue) > 0 {
		ready := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()
		close(ready)
		return
	}
	l.active--
	l.mu.Unlock()
}

// Active returns the number of tasks currently holding a slot
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Queued returns the number of tasks waiting for a slot
func (l *Limiter) Queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Max returns the slot capacity
func (l *Limiter) Max() int {
	return l.max
}

// Run executes fn once a slot is free and releases the slot when it returns
func Run[T any](ctx context.Context, l *Limiter, fn func() (T, error)) (T, error) {
	var zero T
	if err := l.Acquire(ctx); err != nil {
		return zero, err
	}
	defer l.Release()
	return fn()
}

// Result holds the outcome of one task in a BatchExecute call
type Result[T any] struct {
	Value T
	Err   error
}

// BatchExecute runs every task through the limiter and collects each outcome
// without stopping at the first failure. results[i] belongs to tasks[i].
func BatchExecute[T any](ctx context.Context, l *Limiter, tasks []func() (T, error)) []Result[T] {
	results := make([]Result[T], len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task func() (T, error)) {
			defer wg.Done()
			results[i].Value, results[i].Err = Run(ctx, l, task)
		}(i, task)
	}
	wg.Wait()

	return results
}
