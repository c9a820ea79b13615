// Package fiber implements the stackful-context primitive the scheduler
// dispatches: convert-thread-to-fiber, create-fiber, switch-to-fiber and
// current-fiber, built out of goroutines cooperatively handed off through
// unbuffered channels rather than real user-space stack switching (which
// Go's runtime does not expose without cgo or assembly).
//
// At most one goroutine belonging to a given fiber lane ever runs at a
// time: SwitchTo blocks the caller until something switches back to it,
// so two fibers of the same lane never execute concurrently.
package fiber

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

type ctxKey int

const boxKey ctxKey = iota

// Handle is the opaque fiber identity. The zero value is not valid; use
// ConvertThreadToFiber or Create.
type Handle struct {
	ID           uuid.UUID
	resume       chan context.Context
	isController bool
	stackBytes   int

	// lane is the box currently hosting this fiber, updated by SwitchTo
	// every time something resumes it. Unlike a context value, this
	// stays correct even when the only context a caller still holds
	// predates a later cross-thread migration: Controller reads it
	// straight off the handle instead of off a context that might be
	// stale.
	lane atomic.Pointer[box]
}

// IsController reports whether h is a per-thread controller fiber, which
// per the data model invariants is never pooled, parked or returned by
// Current from inside task code.
func (h *Handle) IsController() bool { return h.isController }

// box is the mutable "current fiber" cell for one controller thread's
// lane, plus that lane's fixed controller handle. It is created once
// per ConvertThreadToFiber call and its current field is mutated in
// place by every SwitchTo on that lane, instead of growing the context
// chain by one WithValue layer per switch.
type box struct {
	current    atomic.Pointer[Handle]
	controller *Handle
}

// EntryFunc is the body of a created fiber. It must end by switching to
// some other fiber (typically the controller); if it returns without
// doing so the fiber panics, since the original contract calls that
// behavior undefined and Go has no undefined-behavior fallthrough.
type EntryFunc func(ctx context.Context)

// ConvertThreadToFiber makes the calling goroutine the controller fiber
// of its lane and returns its handle along with a context carrying the
// lane's box. Calling it again with a context that already carries a box
// is a no-op that returns the existing controller handle, matching the
// "idempotent per thread" contract.
func ConvertThreadToFiber(ctx context.Context) (context.Context, *Handle) {
	if b, ok := ctx.Value(boxKey).(*box); ok {
		return ctx, b.controller
	}

	h := &Handle{ID: uuid.New(), resume: make(chan context.Context), isController: true}
	b := &box{controller: h}
	b.current.Store(h)
	h.lane.Store(b)
	return context.WithValue(ctx, boxKey, b), h
}

// Create allocates a new fiber bound to entry. The fiber is not runnable
// until something switches to it. stackBytes is retained for
// configuration fidelity but has no allocation effect: Go goroutine
// stacks start small and grow on demand.
func Create(stackBytes int, entry EntryFunc) *Handle {
	h := &Handle{ID: uuid.New(), resume: make(chan context.Context), stackBytes: stackBytes}
	go func() {
		ctx := <-h.resume
		entry(ctx)
		panic("fiber: entry returned without switching to the controller")
	}()
	return h
}

// SwitchTo suspends self and resumes target, handing it ctx, then blocks
// until some other fiber switches back to self. The returned context is
// whatever ctx that later switch carried, which may belong to a
// different lane than the one self was parked in if self got resumed by
// a different thread's controller than the one that parked it.
//
// self must be the fiber making the call. Bookkeeping about which lane
// currently owns which fiber lives on the Handles themselves (see
// Handle.lane), not on ctx, precisely so it survives a caller holding a
// stale ctx across an arbitrary span of nested calls — e.g. a worker
// fiber entry that reuses the context it captured before running a task,
// after that task suspended and resumed on another thread partway
// through.
func SwitchTo(ctx context.Context, self, target *Handle) context.Context {
	b := self.lane.Load()
	if b == nil {
		panic("fiber: SwitchTo called on a fiber with no current lane")
	}
	b.current.Store(target)
	target.lane.Store(b)
	target.resume <- ctx
	return <-self.resume
}

// Current returns the handle of the fiber currently running on ctx's
// lane. Only meaningful for a context that is still fresh — captured at
// or after the point the calling fiber was last resumed. Use Controller
// to look up a lane's controller from a Handle instead, which stays
// correct even across a migration the caller's context doesn't reflect.
func Current(ctx context.Context) *Handle {
	b, ok := ctx.Value(boxKey).(*box)
	if !ok {
		return nil
	}
	return b.current.Load()
}

// Controller returns the controller fiber of h's current lane. Unlike
// Current, it is derived from h itself rather than from a context
// value, so it reports the resuming thread's controller even when the
// caller only has a context captured before h migrated to a different
// thread's lane. Returns nil if h has never been resumed.
func Controller(h *Handle) *Handle {
	b := h.lane.Load()
	if b == nil {
		return nil
	}
	return b.controller
}
