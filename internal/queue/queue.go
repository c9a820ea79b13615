// Package queue implements the bounded MPMC FIFO queue the scheduler uses
// for its regular and immediate task queues: a ring buffer (backed by
// github.com/eapache/queue) guarded by a mutex and two condition
// variables, with a wait-allowed toggle used to unblock consumers at
// shutdown.
package queue

import (
	"sync"

	equeue "github.com/eapache/queue"
)

// Queue is a bounded, thread-safe FIFO of items of type T.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	items       *equeue.Queue
	capacity    int
	waitAllowed bool
}

// New creates a Queue with the given fixed capacity. capacity must be at
// least 1.
func New[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		panic("queue: capacity must be >= 1")
	}
	q := &Queue[T]{
		items:       equeue.New(),
		capacity:    capacity,
		waitAllowed: true,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Push appends value, blocking while the queue is full unless
// wait-allowed has been cleared, in which case it appends regardless
// rather than deadlocking a producer during shutdown.
func (q *Queue[T]) Push(value T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() >= q.capacity && q.waitAllowed {
		q.notFull.Wait()
	}
	q.items.Add(value)
	q.notEmpty.Signal()
}

// PushBatch appends every value in values, preserving their relative
// order. The lock is held for the whole batch only while there is room:
// if the queue fills partway, the lock is released while waiting for
// space, so items from other producers can be interleaved with the
// batch. Waiting consumers are woken once, after the last value is added.
func (q *Queue[T]) PushBatch(values []T) {
	if len(values) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, v := range values {
		for q.items.Length() >= q.capacity && q.waitAllowed {
			q.notFull.Wait()
		}
		q.items.Add(v)
	}
	q.notEmpty.Broadcast()
}

// TryPop returns the next item without blocking; ok is false if the
// queue was empty.
func (q *Queue[T]) TryPop() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		return value, false
	}
	return q.popLocked(), true
}

// WaitPop blocks until an item is available or wait-allowed becomes
// false. ok is false only in the latter case.
func (q *Queue[T]) WaitPop() (value T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.items.Length() == 0 && q.waitAllowed {
		q.notEmpty.Wait()
	}
	if q.items.Length() == 0 {
		return value, false
	}
	return q.popLocked(), true
}

func (q *Queue[T]) popLocked() T {
	v := q.items.Peek().(T)
	q.items.Remove()
	q.notFull.Signal()
	return v
}

// SetWaitAllowed toggles whether WaitPop/Push may block. Setting it to
// false wakes every sleeping consumer and producer so they observe
// shutdown instead of hanging forever.
func (q *Queue[T]) SetWaitAllowed(allowed bool) {
	q.mu.Lock()
	q.waitAllowed = allowed
	q.mu.Unlock()

	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// WaitAllowed reports the current wait-allowed state.
func (q *Queue[T]) WaitAllowed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waitAllowed
}

// Size returns the current number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Empty reports whether the queue currently holds no items.
func (q *Queue[T]) Empty() bool {
	return q.Size() == 0
}
