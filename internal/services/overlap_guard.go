package services

import "sync/atomic"

// OverlapGuard is a process-wide IDLE/RUNNING flag for the reminder run.
// A trigger that finds it RUNNING is dropped, not queued.
type OverlapGuard struct {
	running atomic.Bool
}

// TryAcquire moves IDLE to RUNNING and reports whether it did
func (g *OverlapGuard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

// Release moves RUNNING back to IDLE
func (g *OverlapGuard) Release() {
	g.running.Store(false)
}

// Running reports whether a run is in flight
func (g *OverlapGuard) Running() bool {
	return g.running.Load()
}
