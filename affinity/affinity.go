// Package affinity provides a ts.Affinity implementation that pins
// controller OS threads to CPU cores, following the per-platform
// file-splitting convention used elsewhere in this pack for the same
// concern (one real implementation file, one portable no-op fallback).
package affinity

import "runtime"

// RoundRobin pins thread index i to CPU core i % runtime.NumCPU(),
// spreading controller threads evenly across available cores.
type RoundRobin struct{}

// New creates a RoundRobin affinity pinner.
func New() RoundRobin { return RoundRobin{} }

func (RoundRobin) Pin(threadIndex int) error {
	n := runtime.NumCPU()
	if n <= 0 {
		return nil
	}
	return pinCurrentThread(threadIndex % n)
}
