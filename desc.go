package ts

// Desc configures a task system launch.
type Desc struct {
	// ThreadCount is the number of OS threads used, including the
	// launching thread. Must be >= 1.
	ThreadCount int

	// FiberCount is the number of pooled worker fibers. Must be >= 1.
	// It also sizes the wait list.
	FiberCount int

	// FiberStackByteCount is the stack size requested for each pooled
	// fiber and the kernel fiber. Retained for configuration fidelity;
	// see fiber.Create for why it has no allocation effect in this
	// implementation.
	FiberStackByteCount int

	// QueueSize is the capacity of the regular task queue. Must be >= 1.
	QueueSize int

	// QueueImmediateSize is the capacity of the high-priority queue.
	// Must be >= 1.
	QueueImmediateSize int

	// Logger receives structured log lines from the controller loop and
	// lifecycle. Defaults to NoOpLogger.
	Logger Logger

	// Metrics receives observability callbacks. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is invoked when a task panics. Defaults to
	// DefaultPanicHandler backed by Logger.
	PanicHandler PanicHandler

	// Affinity, if non-nil, pins each controller OS thread to a CPU core
	// as threads are spawned. See package affinity.
	Affinity Affinity
}

// Affinity pins the calling OS thread to a CPU core. Implementations
// must tolerate being called on platforms without affinity support by
// returning nil (a no-op).
type Affinity interface {
	Pin(threadIndex int) error
}

// DefaultDesc returns a Desc with conservative, valid defaults: one
// thread, one fiber, 64KiB stacks, and depth-4 queues. Callers
// overwrite whichever fields matter for their workload.
func DefaultDesc() Desc {
	return Desc{
		ThreadCount:         1,
		FiberCount:          1,
		FiberStackByteCount: 64 * 1024,
		QueueSize:           4,
		QueueImmediateSize:  4,
	}
}

// Validate reports a *ConfigError if desc cannot be used to launch a
// system, mirroring is_valid_task_system_desc from the original C++
// header.
func (d Desc) Validate() error {
	switch {
	case d.ThreadCount < 1:
		return &ConfigError{Field: "ThreadCount", Reason: "must be >= 1"}
	case d.FiberCount < 1:
		return &ConfigError{Field: "FiberCount", Reason: "must be >= 1"}
	case d.QueueSize < 1:
		return &ConfigError{Field: "QueueSize", Reason: "must be >= 1"}
	case d.QueueImmediateSize < 1:
		return &ConfigError{Field: "QueueImmediateSize", Reason: "must be >= 1"}
	}
	return nil
}

func (d Desc) withDefaults() Desc {
	if d.Logger == nil {
		d.Logger = NoOpLogger{}
	}
	if d.Metrics == nil {
		d.Metrics = NilMetrics{}
	}
	if d.PanicHandler == nil {
		d.PanicHandler = &DefaultPanicHandler{Logger: d.Logger}
	}
	return d
}
