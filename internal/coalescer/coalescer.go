package coalescer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fleetsync/internal/limiter"
)

// Coalescer merges near-simultaneous calls sharing a batch key into one
// downstream call. The first call for an empty key arms a fixed window;
// later calls inside the window join the same bucket without re-arming it.
// The merged call runs through the limiter, and results fan back out to each
// caller in submission order.
type Coalescer[P, R any] struct {
	window  time.Duration
	clock   Clock
	limiter *limiter.Limiter
	buckets map[string]*bucket[P, R]
	logger  zerolog.Logger
	mu      sync.Mutex
}

// New creates a Coalescer with the given batching window. A nil clock falls
// back to the system clock.
func New[P, R any](window time.Duration, clock Clock, lim *limiter.Limiter, logger zerolog.Logger) *Coalescer[P, R] {
	if clock == nil {
		clock = SystemClock()
	}
	return &Coalescer[P, R]{
		window:  window,
		clock:   clock,
		limiter: lim,
		buckets: make(map[string]*bucket[P, R]),
		logger:  logger.With().Str("component", "coalescer").Logger(),
	}
}

// Enqueue joins the current bucket for key (opening one if the key is empty)
// and blocks until the batch dispatches and this caller's result arrives.
// The exec of the call that opens a bucket executes the whole batch.
//
// A caller whose ctx ends before the batch dispatches stops waiting, but the
// dispatched work itself is never cancelled.
func (c *Coalescer[P, R]) Enqueue(ctx context.Context, key string, params P, exec BatchFunc[P, R]) (R, error) {
	call := &pendingCall[P, R]{
		params: params,
		done:   make(chan outcome[R], 1),
	}

	c.mu.Lock()
	b := c.buckets[key]
	if b == nil {
		b = &bucket[P, R]{exec: exec, ctx: ctx}
		c.buckets[key] = b
		// First call starts the clock; joiners never extend it.
		b.timer = c.clock.AfterFunc(c.window, func() {
			c.flush(key)
		})
	}
	b.calls = append(b.calls, call)
	size := len(b.calls)
	c.mu.Unlock()

	c.logger.Debug().Str("key", key).Int("size", size).Msg("call enqueued")

	var zero R
	select {
	case out := <-call.done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// flush swaps the bucket out so new calls start a fresh batch, executes the
// merged call through the limiter, and distributes results positionally.
func (c *Coalescer[P, R]) flush(key string) {
	c.mu.Lock()
	b := c.buckets[key]
	delete(c.buckets, key)
	c.mu.Unlock()

	if b == nil || len(b.calls) == 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}

	params := make([]P, len(b.calls))
	for i, call := range b.calls {
		params[i] = call.params
	}

	c.logger.Debug().Str("key", key).Int("calls", len(b.calls)).Msg("dispatching batch")

	// One caller abandoning its result must not cancel the batch for its
	// siblings, so dispatch runs detached from the opening caller's ctx.
	ctx := context.WithoutCancel(b.ctx)
	results, err := limiter.Run(ctx, c.limiter, func() ([]R, error) {
		return b.exec(ctx, params)
	})

	// A failed batch fails every waiter the same way; there is no
	// partial success within one batch.
	if err != nil {
		c.fail(b, err)
		return
	}

	if len(results) != len(params) {
		c.logger.Error().
			Str("key", key).
			Int("expected", len(params)).
			Int("got", len(results)).
			Msg("batch result size mismatch")
		c.fail(b, fmt.Errorf("batch result size mismatch: expected %d, got %d", len(params), len(results)))
		return
	}

	for i, call := range b.calls {
		call.done <- outcome[R]{value: results[i]}
	}
}

func (c *Coalescer[P, R]) fail(b *bucket[P, R], err error) {
	for _, call := range b.calls {
		call.done <- outcome[R]{err: err}
	}
}

// FlushAll dispatches every pending bucket immediately (for graceful shutdown)
func (c *Coalescer[P, R]) FlushAll() {
	c.mu.Lock()
	keys := make([]string, 0, len(c.buckets))
	for key := range c.buckets {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.flush(key)
	}
}

// Close stops pending window timers and flushes everything still queued
func (c *Coalescer[P, R]) Close() {
	c.mu.Lock()
	for _, b := range c.buckets {
		if b.timer != nil {
			b.timer.Stop()
		}
	}
	c.mu.Unlock()

	c.FlushAll()
	c.logger.Debug().Msg("coalescer closed")
}

// PendingKeys returns the batch keys with an open bucket
func (c *Coalescer[P, R]) PendingKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.buckets))
	for key := range c.buckets {
		keys = append(keys, key)
	}
	return keys
}

// PendingCalls returns the number of calls waiting in the bucket for key
func (c *Coalescer[P, R]) PendingCalls(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buckets[key]
	if b == nil {
		return 0
	}
	return len(b.calls)
}
