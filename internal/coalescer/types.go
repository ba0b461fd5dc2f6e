package coalescer

import (
	"context"
	"time"
)

// BatchFunc executes one coalesced downstream call. It must return one result
// per input element in the same order, or fail for the whole batch.
type BatchFunc[P, R any] func(ctx context.Context, params []P) ([]R, error)

// Clock arms the batching window. Injectable so tests advance virtual time
// instead of sleeping through real delays.
type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a stoppable pending callback
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{time.AfterFunc(d, fn)}
}

type realTimer struct {
	t *time.Timer
}

func (rt realTimer) Stop() bool {
	return rt.t.Stop()
}

// SystemClock returns a Clock backed by time.AfterFunc
func SystemClock() Clock {
	return realClock{}
}

type outcome[R any] struct {
	value R
	err   error
}

// pendingCall is one caller's slice of a batch. It carries its own params and
// its own delivery channel, independent of sibling calls in the same bucket.
type pendingCall[P, R any] struct {
	params P
	done   chan outcome[R]
}

// bucket accumulates pending calls for one batch key until its window fires
type bucket[P, R any] struct {
	calls []*pendingCall[P, R]
	exec  BatchFunc[P, R]
	timer Timer
	ctx   context.Context
}
