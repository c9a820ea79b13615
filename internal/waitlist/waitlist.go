// Package waitlist implements the bounded collection of (fiber, wait
// counter) entries a controller parks suspended fibers in. Entries are
// scanned in reverse insertion order and removed with a swap against the
// last live slot, mirroring the original C++ fiber_wait_list::try_pop
// (see original_source/src/ts/task_system.cpp) exactly; the scan order
// has no correctness effect but is pinned for behavioral parity.
package waitlist

import (
	"sync"

	"github.com/taskfiber/ts/internal/fiber"
)

// Counter is the minimal view of a wait counter the wait list needs: an
// atomic, monotonically-decreasing read. Observing zero is durable, so no
// further synchronization is required around the read.
type Counter interface {
	Load() uint64
}

type entry struct {
	h       *fiber.Handle
	counter Counter
}

// WaitList is a mutex-protected, fixed-capacity set of parked fibers.
// There is no condition variable: controllers poll TryPop between fiber
// returns rather than blocking on it.
type WaitList struct {
	mu       sync.Mutex
	entries  []entry
	capacity int
}

// New creates a WaitList sized to hold up to capacity entries (the
// configured fiber count).
func New(capacity int) *WaitList {
	return &WaitList{
		entries:  make([]entry, 0, capacity),
		capacity: capacity,
	}
}

// Push inserts h parked on counter. counter must already read > 0.
func (w *WaitList) Push(h *fiber.Handle, counter Counter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.entries) >= w.capacity {
		panic("waitlist: capacity exceeded")
	}
	w.entries = append(w.entries, entry{h: h, counter: counter})
}

// TryPop scans entries in reverse insertion order for one whose counter
// has reached zero. If found, it is removed via swap-with-last and
// returned with ok=true.
func (w *WaitList) TryPop() (h *fiber.Handle, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.entries); i > 0; i-- {
		e := w.entries[i-1]
		if e.counter.Load() > 0 {
			continue
		}

		last := len(w.entries) - 1
		if i-1 != last {
			w.entries[i-1] = w.entries[last]
		}
		w.entries[last] = entry{}
		w.entries = w.entries[:last]
		return e.h, true
	}
	return nil, false
}

// Len reports the number of currently parked entries.
func (w *WaitList) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.entries)
}
