package ts

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/taskfiber/ts/internal/fiber"
	"github.com/taskfiber/ts/internal/fiberpool"
	"github.com/taskfiber/ts/internal/queue"
	"github.com/taskfiber/ts/internal/waitlist"
)

// FiberHandle identifies a running fiber; see CurrentFiber.
type FiberHandle = fiber.Handle

// system is the process-wide state for one Launch invocation. Only one
// Launch may be in flight per process at a time (§9: a single global
// instance, matching the original's process-wide task_system singleton).
type system struct {
	desc Desc

	regular   *queue.Queue[taskItem]
	immediate *queue.Queue[taskItem]
	pool      *fiberpool.Pool
	waitList  *waitlist.WaitList

	execFlag atomic.Bool

	failOnce sync.Once
	failErr  atomic.Pointer[error]

	report *Report

	wg sync.WaitGroup
}

var current atomic.Pointer[system]

func (s *system) metrics() Metrics { return s.desc.Metrics }
func (s *system) logger() Logger   { return s.desc.Logger }

// fail records the first fatal error observed during a run and clears
// the exec flag, triggering the fail-fast shutdown described in §7.
// Later calls are no-ops: only the first failure is reported.
func (s *system) fail(err error) {
	s.failOnce.Do(func() {
		s.failErr.Store(&err)
		s.execFlag.Store(false)
		s.logger().Error("task system failing fast", F("run_id", s.report.RunID), F("error", err))
	})
}

func (s *system) recoverKernelPanic(ctx context.Context) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		threadIndex := 0
		if tc := currentThreadCtx(ctx); tc != nil {
			threadIndex = tc.threadIndex
		}
		s.desc.PanicHandler.HandlePanic(s.report.RunID, threadIndex, r, stack)
		s.logger().Error("kernel fiber panicked",
			F("run_id", s.report.RunID),
			F("panic", r),
			F("stack", string(stack)),
		)
		s.fail(&TaskError{Panic: r, Stack: stack})
	}
}

func lockThread(s *system, threadIndex int) {
	runtime.LockOSThread()
	if s.desc.Affinity != nil {
		if err := s.desc.Affinity.Pin(threadIndex); err != nil {
			s.logger().Warn("affinity pin failed", F("thread", threadIndex), F("error", err))
		}
	}
}

func unlockThread() {
	runtime.UnlockOSThread()
}

// Launch brings up a task system: desc.ThreadCount OS threads (including
// the calling one), desc.FiberCount pooled worker fibers, and the two
// priority queues, then runs kernelEntry on a dedicated kernel fiber on
// the calling thread (§4.7). Launch blocks until kernelEntry returns and
// every other thread has joined, then tears the system down and returns
// a ReportSnapshot. Only one Launch may run per process at a time.
func Launch(desc Desc, kernelEntry func(ctx context.Context)) (ReportSnapshot, error) {
	if err := desc.Validate(); err != nil {
		return ReportSnapshot{}, err
	}
	desc = desc.withDefaults()

	s := &system{
		desc:     desc,
		waitList: waitlist.New(desc.FiberCount),
		report:   &Report{RunID: uuid.New()},
	}
	s.regular = queue.New[taskItem](desc.QueueSize)
	s.immediate = queue.New[taskItem](desc.QueueImmediateSize)
	s.pool = fiberpool.New(desc.FiberCount, desc.FiberStackByteCount, s.workerFiberEntry)

	if !current.CompareAndSwap(nil, s) {
		return ReportSnapshot{}, &InitError{Cause: fmt.Errorf("a task system is already running in this process")}
	}
	defer current.Store(nil)

	s.execFlag.Store(true)
	s.logger().Info("task system launching",
		F("run_id", s.report.RunID),
		F("threads", desc.ThreadCount),
		F("fibers", desc.FiberCount),
	)

	s.wg.Add(desc.ThreadCount - 1)
	for i := 1; i < desc.ThreadCount; i++ {
		threadIndex := i
		go func() {
			defer s.wg.Done()
			s.runWorkerController(threadIndex)
		}()
	}

	s.runLaunchingController(kernelEntry)

	s.regular.SetWaitAllowed(false)
	s.immediate.SetWaitAllowed(false)
	s.wg.Wait()

	s.logger().Info("task system stopped", F("run_id", s.report.RunID))

	if errPtr := s.failErr.Load(); errPtr != nil {
		return s.report.snapshot(), *errPtr
	}
	return s.report.snapshot(), nil
}

func requireSystem() *system {
	s := current.Load()
	if s == nil {
		panic("ts: Run/RunImmediate/WaitFor called without a running task system")
	}
	return s
}

// Run enqueues tasks on the regular (low-priority) queue. If counter is
// non-nil it is incremented by len(tasks) before any task can be
// observed as started, so a concurrent WaitFor on counter never
// momentarily sees it reach zero early.
func Run(tasks []Task, counter *WaitCounter) {
	s := requireSystem()
	s.submit(s.regular, tasks, counter, false)
}

// RunImmediate enqueues tasks on the immediate (high-priority) queue,
// which every worker fiber drains before touching the regular queue.
func RunImmediate(tasks []Task, counter *WaitCounter) {
	s := requireSystem()
	s.submit(s.immediate, tasks, counter, true)
}

func (s *system) submit(q *queue.Queue[taskItem], tasks []Task, counter *WaitCounter, immediate bool) {
	if len(tasks) == 0 {
		panic("ts: Run/RunImmediate called with an empty batch")
	}
	if counter != nil {
		counter.add(uint64(len(tasks)))
	}

	items := make([]taskItem, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{fn: t, counter: counter}
	}
	q.PushBatch(items)

	if immediate {
		s.report.taskImmediateCount.Add(uint64(len(tasks)))
	} else {
		s.report.taskCount.Add(uint64(len(tasks)))
	}
	s.metrics().RecordQueueDepth(immediate, q.Size())
}

// WaitFor parks the calling fiber until counter reaches zero, switching
// control to the controller fiber of whichever thread currently runs
// this lane. It must be called from a worker or kernel fiber, never from
// a controller fiber, and its return value must replace the caller's
// ctx: if the fiber resumes on a different thread, the returned context
// carries that thread's lane state instead of the original one's.
func WaitFor(ctx context.Context, counter *WaitCounter) context.Context {
	if counter.Load() == 0 {
		return ctx
	}
	cur := fiber.Current(ctx)
	if cur == nil || cur.IsController() {
		panic("ts: WaitFor called from outside a worker or kernel fiber")
	}

	tc := currentThreadCtx(ctx)
	tc.pendingSuspend.Store(counter)
	return fiber.SwitchTo(ctx, cur, fiber.Controller(cur))
}

// CurrentFiber returns the handle of the fiber currently running on
// ctx's lane, or nil if ctx was never derived from a running task
// system's worker or kernel entry.
func CurrentFiber(ctx context.Context) *FiberHandle {
	return fiber.Current(ctx)
}

// LiveReport returns the in-progress Report of the currently running
// task system, or nil if none is running. Unlike the ReportSnapshot
// Launch returns, its counters keep advancing until the run finishes;
// it is meant for periodic polling, see
// observability/prometheus.ReportPoller.
func LiveReport() *Report {
	s := current.Load()
	if s == nil {
		return nil
	}
	return s.report
}

// ThreadCount returns the thread count of the currently running task
// system, or 0 if none is running.
func ThreadCount() int {
	s := current.Load()
	if s == nil {
		return 0
	}
	return s.desc.ThreadCount
}

// ShutdownGraceful requests early termination of the currently running
// task system: the run is given up to timeout to finish naturally (via
// the kernel fiber returning) before the exec flag is force-cleared and every controller
// unwinds regardless of queue contents. It is a no-op if no system is
// running, and safe to call from any goroutine, including a task or
// the kernel fiber itself. Callers that can simply let the kernel
// fiber return don't need this; it exists for external cancellation
// (a signal handler, a request deadline) that can't reach into the
// kernel entry point directly.
func ShutdownGraceful(timeout time.Duration) {
	s := current.Load()
	if s == nil {
		return
	}
	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		<-timer.C
		s.execFlag.Store(false)
	}()
}
