package fiber

import (
	"context"
	"testing"
	"time"
)

func TestConvertThreadToFiber_IdempotentAndController(t *testing.T) {
	ctx, h := ConvertThreadToFiber(context.Background())
	if !h.IsController() {
		t.Fatal("converted thread must report IsController() == true")
	}

	ctx2, h2 := ConvertThreadToFiber(ctx)
	if h2 != h {
		t.Fatal("converting an already-converted context must return the same handle")
	}
	if Current(ctx2) != h {
		t.Fatal("Current must report the controller immediately after conversion")
	}
	if Controller(h) != h {
		t.Fatal("Controller of a controller handle must be itself")
	}
}

func TestSwitchTo_RoundTripsAndUpdatesCurrent(t *testing.T) {
	ctx, controller := ConvertThreadToFiber(context.Background())

	var observed *Handle
	var worker *Handle
	worker = Create(4096, func(wctx context.Context) {
		observed = Current(wctx)
		SwitchTo(wctx, worker, controller)
	})

	if Current(ctx) != controller {
		t.Fatal("current fiber must be the controller before switching away")
	}

	ctx = SwitchTo(ctx, controller, worker)

	if observed != worker {
		t.Fatalf("worker fiber's own Current() = %v, want itself (%v)", observed, worker)
	}
	if Current(ctx) != controller {
		t.Fatal("current fiber must be the controller again after the worker switched back")
	}
}

func TestSwitchTo_OutsideConvertedLanePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("SwitchTo on a fiber with no current lane must panic")
		}
	}()
	h := Create(4096, func(context.Context) {})
	SwitchTo(context.Background(), h, h)
}

func TestCurrent_NilOnUnconvertedContext(t *testing.T) {
	if Current(context.Background()) != nil {
		t.Fatal("Current on a context with no box must be nil")
	}
}

func TestController_NilOnUnresumedHandle(t *testing.T) {
	h := Create(4096, func(context.Context) {})
	if Controller(h) != nil {
		t.Fatal("Controller of a handle never resumed must be nil")
	}
}

func TestCreate_EntryMustNotReturn(t *testing.T) {
	// An entry that returns without switching back panics inside its own
	// goroutine; this is only observable indirectly (the contract is
	// documented, not enforced by the caller), so this test just checks
	// that a well-behaved entry completes a full round trip without the
	// panic ever firing within a bounded time.
	ctx, controller := ConvertThreadToFiber(context.Background())
	done := make(chan struct{})
	var worker *Handle
	worker = Create(4096, func(wctx context.Context) {
		close(done)
		SwitchTo(wctx, worker, controller)
	})
	SwitchTo(ctx, controller, worker)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker fiber entry never ran")
	}
}

func TestFiberMigration_ResumingLaneRegainsControl(t *testing.T) {
	// A fiber parked by lane A and later resumed by a different lane B
	// must, when it switches back, return control to B rather than to
	// A: the returned context after each SwitchTo always reflects
	// whichever lane most recently resumed the fiber.
	ctxA, controllerA := ConvertThreadToFiber(context.Background())
	ctxB, controllerB := ConvertThreadToFiber(context.Background())

	secondResume := make(chan struct{})

	var worker *Handle
	worker = Create(4096, func(wctx context.Context) {
		wctx = SwitchTo(wctx, worker, controllerA)
		close(secondResume)
		SwitchTo(wctx, worker, controllerB)
	})

	ctxA = SwitchTo(ctxA, controllerA, worker)
	if Current(ctxA) != controllerA {
		t.Fatal("lane A must regain control after the worker's first switch")
	}

	ctxB = SwitchTo(ctxB, controllerB, worker)

	select {
	case <-secondResume:
	case <-time.After(time.Second):
		t.Fatal("worker fiber never resumed a second time")
	}
	if Current(ctxB) != controllerB {
		t.Fatal("lane B must regain control after resuming a migrated fiber")
	}
}

func TestController_ReflectsCurrentLaneAfterMigration(t *testing.T) {
	// Controller(h) must track h's most recent resuming lane even when
	// called with a handle captured before migration: this is the
	// property workerFiberEntry and the kernel fiber closure rely on to
	// avoid switching back to a stale controller after a task migrates
	// mid-run (see controller.go).
	ctxA, controllerA := ConvertThreadToFiber(context.Background())
	ctxB, controllerB := ConvertThreadToFiber(context.Background())

	observedAfterFirstSwitch := make(chan *Handle, 1)
	secondResume := make(chan struct{})

	var worker *Handle
	worker = Create(4096, func(wctx context.Context) {
		observedAfterFirstSwitch <- Controller(worker)
		wctx = SwitchTo(wctx, worker, controllerA)
		close(secondResume)
		SwitchTo(wctx, worker, controllerB)
	})

	ctxA = SwitchTo(ctxA, controllerA, worker)
	if got := <-observedAfterFirstSwitch; got != controllerA {
		t.Fatalf("Controller(worker) after the first resume = %v, want controllerA (%v)", got, controllerA)
	}
	if Current(ctxA) != controllerA {
		t.Fatal("lane A must regain control after the worker's first switch")
	}

	ctxB = SwitchTo(ctxB, controllerB, worker)

	select {
	case <-secondResume:
	case <-time.After(time.Second):
		t.Fatal("worker fiber never resumed a second time")
	}
	if Controller(worker) != controllerB {
		t.Fatal("Controller(worker) must report the lane that most recently resumed it, not the one that first resumed it")
	}
	if Current(ctxB) != controllerB {
		t.Fatal("lane B must regain control after resuming a migrated fiber")
	}
}
