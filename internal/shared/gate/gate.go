// Package gate provides the mutual-exclusion switch between recurring ingestion
// and on-demand backfills.
package gate

import (
	"sync"
	"sync/atomic"
)

// Gate is shared by reference between the recurring task and the backfill handler.
// Recurring ingestion is enabled while no backfill holds the gate. State is
// process-local and starts enabled.
type Gate struct {
	run     sync.Mutex // held by whichever run is writing
	holders atomic.Int32
}

// New returns an enabled gate.
func New() *Gate {
	return &Gate{}
}

// Enabled reports whether recurring ingestion may run.
func (g *Gate) Enabled() bool {
	return g.holders.Load() == 0
}

// TryRecurring runs fn unless the gate is disabled or another run is active.
// Skipped ticks are dropped, not queued. It reports whether fn ran.
func (g *Gate) TryRecurring(fn func()) bool {
	if !g.Enabled() {
		return false
	}
	if !g.run.TryLock() {
		return false
	}
	defer g.run.Unlock()
	// a backfill may have taken the gate between the check and the lock
	if !g.Enabled() {
		return false
	}
	fn()
	return true
}

// Hold disables recurring ingestion and waits for an in-flight run to finish.
// The returned release re-enables it; calling release more than once is a no-op.
func (g *Gate) Hold() (release func()) {
	g.holders.Add(1)
	g.run.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			g.run.Unlock()
			g.holders.Add(-1)
		})
	}
}

// Exclusive runs fn while holding the gate. The gate is released on every
// exit path, including a panic in fn.
func (g *Gate) Exclusive(fn func() error) error {
	release := g.Hold()
	defer release()
	return fn()
}
