package ts

import (
	"context"
	"runtime/debug"
	"sync/atomic"

	"github.com/taskfiber/ts/internal/fiber"
)

type tsCtxKey int

const threadCtxKey tsCtxKey = 0

// threadCtx is the per-controller-thread "pending suspend counter" slot
// described in §4: strictly per-thread state, written only by the
// thread that owns it. It is embedded once in that thread's own fixed
// context value, the same value handed unchanged to every fiber the
// thread resumes, so a fiber reading it while actively running always
// sees the threadCtx of whichever controller most recently resumed it.
// The controller fiber to switch back to is looked up fresh from the
// lane's box via fiber.Controller instead of being cached here, since a
// fiber that migrates mid-task would otherwise hand control back to the
// thread that originally parked it rather than the one that resumed it.
type threadCtx struct {
	threadIndex    int
	pendingSuspend atomic.Pointer[WaitCounter]
}

func withThreadCtx(ctx context.Context, threadIndex int) (context.Context, *threadCtx) {
	tc := &threadCtx{threadIndex: threadIndex}
	return context.WithValue(ctx, threadCtxKey, tc), tc
}

func currentThreadCtx(ctx context.Context) *threadCtx {
	tc, _ := ctx.Value(threadCtxKey).(*threadCtx)
	return tc
}

// runWorkerController is the controller loop for every thread other than
// the launching one (§4.5): it converts itself to a fiber, pulls an
// initial fiber from the pool, and loops switching into the current
// runnable until the exec flag clears.
//
// ctx is this thread's own fixed context (embedding its box and
// threadCtx) and is deliberately never reassigned from a switch's
// return value: this controller always hands the SAME ctx to whatever
// it resumes, so a fiber it resumes always observes this thread's own
// state rather than some other fiber's stale context forwarded back
// through an earlier switch.
func (s *system) runWorkerController(threadIndex int) {
	lockThread(s, threadIndex)
	defer unlockThread()

	ctx, controllerHandle := fiber.ConvertThreadToFiber(context.Background())
	ctx, tc := withThreadCtx(ctx, threadIndex)

	if !s.execFlag.Load() {
		return
	}
	current := s.pool.Pop()

	for s.execFlag.Load() {
		fiber.SwitchTo(ctx, controllerHandle, current)

		if counter := tc.pendingSuspend.Swap(nil); counter != nil {
			s.waitList.Push(current, counter)
			s.metrics().RecordWaitListLen(s.waitList.Len())
			current = s.pool.Pop()
			continue
		}

		if h, ok := s.waitList.TryPop(); ok {
			s.pool.PushBack(current)
			s.metrics().RecordFiberPoolIdle(s.pool.Len())
			current = h
		}
	}
}

// runLaunchingController is the controller loop for the thread that
// called Launch: it additionally owns the one-shot kernel fiber and
// gives it priority over the wait list whenever its dependency resolves
// (§4.5, §4.7).
func (s *system) runLaunchingController(kernelEntry func(context.Context)) {
	lockThread(s, 0)
	defer unlockThread()

	ctx, controllerHandle := fiber.ConvertThreadToFiber(context.Background())
	ctx, tc := withThreadCtx(ctx, 0)

	// The kernel fiber's own handle, not the context it happened to be
	// resumed with last, is the reliable way to find whichever thread
	// should regain control once kernelEntry returns: kernelEntry's own
	// later WaitFor calls (anything past its first, which uses the
	// dedicated slot below) can resume it on a different thread than
	// this one, leaving kctx stale.
	var kernelHandle *fiber.Handle
	kernelHandle = fiber.Create(s.desc.FiberStackByteCount, func(kctx context.Context) {
		func() {
			defer s.recoverKernelPanic(kctx)
			kernelEntry(kctx)
		}()
		s.execFlag.Store(false)
		fiber.SwitchTo(kctx, kernelHandle, fiber.Controller(kernelHandle))
	})

	current := kernelHandle
	var kernelWaitCounter *WaitCounter
	kernelUsedSpecialSlot := false

	for s.execFlag.Load() {
		fiber.SwitchTo(ctx, controllerHandle, current)

		if counter := tc.pendingSuspend.Swap(nil); counter != nil {
			if current == kernelHandle && !kernelUsedSpecialSlot {
				// Only the kernel fiber's first wait uses the dedicated
				// slot; every later wait (kernel's or anyone else's)
				// goes through the ordinary wait list.
				kernelWaitCounter = counter
				kernelUsedSpecialSlot = true
			} else {
				s.waitList.Push(current, counter)
				s.metrics().RecordWaitListLen(s.waitList.Len())
			}
			current = s.pool.Pop()
			continue
		}

		if kernelWaitCounter != nil && kernelWaitCounter.Load() == 0 {
			s.pool.PushBack(current)
			s.metrics().RecordFiberPoolIdle(s.pool.Len())
			current = kernelHandle
			kernelWaitCounter = nil
			continue
		}
		if h, ok := s.waitList.TryPop(); ok {
			s.pool.PushBack(current)
			s.metrics().RecordFiberPoolIdle(s.pool.Len())
			current = h
		}
	}
}

// workerFiberEntry is run by every pooled fiber (§4.6): drain the
// immediate queue before the regular one, run at most one task per
// iteration, then hand control back to the controller.
//
// self is captured once, since it never changes for this fiber's whole
// lifetime. The controller to switch back to is looked up fresh via
// fiber.Controller(self) rather than cached from ctx: a task's internal
// WaitFor can migrate this fiber to a different thread partway through
// runTask, and Task has no way to hand that migration back out through
// its own void return, so ctx here may still be the context this fiber
// had before the task ran. Switching back with the wrong, stale
// controller would corrupt that controller's lane and leave the thread
// that actually resumed this fiber blocked forever.
func (s *system) workerFiberEntry(ctx context.Context) {
	self := fiber.Current(ctx)

	for s.execFlag.Load() {
		immediate := true
		item, ok := s.immediate.TryPop()
		if !ok {
			immediate = false
			item, ok = s.regular.TryPop()
		}
		if ok {
			s.runTask(ctx, item, immediate)
		}

		ctx = fiber.SwitchTo(ctx, self, fiber.Controller(self))
	}

	fiber.SwitchTo(ctx, self, fiber.Controller(self))
}

func (s *system) runTask(ctx context.Context, item taskItem, immediate bool) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.desc.PanicHandler.HandlePanic(s.report.RunID, currentThreadCtx(ctx).threadIndex, r, stack)
			s.fail(&TaskError{Panic: r, Stack: stack})
		}
	}()
	item.run(ctx)
	s.metrics().RecordTaskCompleted(immediate)
}
