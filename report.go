package ts

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Report accumulates statistics for one Launch/run while the run is in
// progress. It is only ever accessed through a pointer — see LiveReport
// — and must never be copied: its counters are atomics updated
// concurrently by every submitting fiber, and copying a live atomic is
// a go vet copylocks violation as well as a race.
type Report struct {
	// RunID identifies this particular Launch invocation, for
	// correlating logs and metrics.
	RunID uuid.UUID

	taskImmediateCount atomic.Uint64
	taskCount          atomic.Uint64
}

// TaskImmediateCount returns the total number of tasks submitted via
// RunImmediate during this run.
func (r *Report) TaskImmediateCount() uint64 { return r.taskImmediateCount.Load() }

// TaskCount returns the total number of tasks submitted via Run during
// this run.
func (r *Report) TaskCount() uint64 { return r.taskCount.Load() }

// ReportSnapshot is a plain, freely copyable point-in-time read of a
// Report's counters, returned by Launch once a run finishes. It holds
// no atomics, so — unlike Report itself — it can be passed and returned
// by value.
type ReportSnapshot struct {
	RunID              uuid.UUID
	TaskCount          uint64
	TaskImmediateCount uint64
}

func (r *Report) snapshot() ReportSnapshot {
	return ReportSnapshot{
		RunID:              r.RunID,
		TaskCount:          r.taskCount.Load(),
		TaskImmediateCount: r.taskImmediateCount.Load(),
	}
}
