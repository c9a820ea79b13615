package ts

import (
	"context"
	"sync/atomic"
)

// Task is the unit of work run by a worker fiber: an invocable taking
// the current fiber's context (through which WaitFor and CurrentFiber
// operate) and returning nothing.
type Task func(ctx context.Context)

// WaitCounter is a shared, atomic, non-negative integer tracking how many
// tasks of a submission batch have not yet finished. It is owned by the
// caller of Run/RunImmediate/WaitFor: its address must remain stable for
// as long as any task in the batch, or any fiber parked on it, is alive.
type WaitCounter struct {
	v atomic.Uint64
}

// Load reads the counter. Observing zero is a durable event: counters in
// this system are never reused while a fiber is parked on them.
func (c *WaitCounter) Load() uint64 { return c.v.Load() }

func (c *WaitCounter) store(n uint64) { c.v.Store(n) }

// add atomically increases the counter by n, used when submitting a new
// batch of tasks against it.
func (c *WaitCounter) add(n uint64) uint64 { return c.v.Add(n) }

// decrement releases the task's writes (via the atomic add) so that a
// fiber which later observes the counter at zero (an acquire read) sees
// every completed task's side effects.
func (c *WaitCounter) decrement() uint64 { return c.v.Add(^uint64(0)) }

type taskItem struct {
	fn      Task
	counter *WaitCounter
}

func (t taskItem) run(ctx context.Context) {
	t.fn(ctx)
	if t.counter != nil {
		t.counter.decrement()
	}
}
