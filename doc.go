// Package ts implements a cooperative, fiber-based task execution engine:
// a fixed pool of OS threads each drive a small number of cooperatively
// scheduled fibers pulling work from two priority queues, coordinated by
// a controller loop per thread and a single kernel fiber that runs the
// caller-supplied entry point.
//
// # Quick Start
//
// Launch blocks the calling goroutine for the lifetime of the run:
//
//	desc := ts.DefaultDesc()
//	desc.ThreadCount = 4
//	desc.FiberCount = 16
//
//	report, err := ts.Launch(desc, func(ctx context.Context) {
//		var counter ts.WaitCounter
//		ts.Run([]ts.Task{
//			func(ctx context.Context) { /* ... */ },
//		}, &counter)
//		ctx = ts.WaitFor(ctx, &counter)
//	})
//
// # Key Concepts
//
// Task: the unit of work a worker fiber runs; see Run and RunImmediate.
//
// WaitCounter: a shared counter a batch of tasks decrements as they
// finish; WaitFor parks the calling fiber until it reaches zero.
//
// Desc: launch-time configuration (thread count, fiber count, queue
// depths, and the observability hooks: Logger, Metrics, PanicHandler).
//
// # Thread Safety
//
// Task bodies run on worker fibers, never concurrently with another
// fiber sharing the same lane; WaitFor and CurrentFiber must be called
// with the ctx handed to the task, and its return value must replace
// the caller's ctx since the fiber may resume on a different OS thread.
package ts
