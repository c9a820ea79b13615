//go:build linux

package affinity

import (
	"golang.org/x/sys/unix"
)

// pinCurrentThread binds the calling OS thread to a single CPU core via
// sched_setaffinity. Callers must have already called
// runtime.LockOSThread, since affinity is a per-OS-thread property and
// Go goroutines migrate between OS threads by default.
func pinCurrentThread(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}
