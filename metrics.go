package ts

import "github.com/google/uuid"

// PanicHandler is invoked when a task panics during execution, after the
// panic has been recovered at the worker-fiber boundary. The fail-fast
// policy (§7) still clears the exec flag and fails the run once the
// handler returns; this hook exists for observability, not recovery.
type PanicHandler interface {
	HandlePanic(runID uuid.UUID, threadIndex int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs the panic through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

func (h *DefaultPanicHandler) HandlePanic(runID uuid.UUID, threadIndex int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NoOpLogger{}
	}
	logger.Error("task panicked",
		F("run_id", runID),
		F("thread", threadIndex),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// Metrics is the observability interface the task system reports
// through. All methods must be non-blocking and safe for concurrent use.
// The default NilMetrics discards everything; observability/prometheus
// provides a Prometheus-backed implementation.
type Metrics interface {
	RecordTaskCompleted(immediate bool)
	RecordQueueDepth(immediate bool, depth int)
	RecordFiberPoolIdle(idle int)
	RecordWaitListLen(n int)
}

// NilMetrics is a no-op Metrics implementation, used when none is
// configured.
type NilMetrics struct{}

func (NilMetrics) RecordTaskCompleted(immediate bool)         {}
func (NilMetrics) RecordQueueDepth(immediate bool, depth int) {}
func (NilMetrics) RecordFiberPoolIdle(idle int)               {}
func (NilMetrics) RecordWaitListLen(n int)                    {}
