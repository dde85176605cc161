package metrics

import (
	"sync/atomic"
	"time"
)

// Collector counts synchronization outcomes. Counters are atomic so the
// engine, the queue manager, and replay goroutines can report without
// coordination.
type Collector struct {
	reconcileOK   atomic.Int64
	reconcileFail atomic.Int64
	rollbacks     atomic.Int64
	replays       atomic.Int64
	latencyNanos  atomic.Int64
	latencyCount  atomic.Int64
}

// Snapshot представляет согласованное на момент чтения состояние счетчиков
type Snapshot struct {
	ReconcileOK    int64         `json:"reconcile_ok"`
	ReconcileFail  int64         `json:"reconcile_fail"`
	Rollbacks      int64         `json:"rollbacks"`
	Replays        int64         `json:"replays"`
	AverageLatency time.Duration `json:"average_latency"`
}

func NewCollector() *Collector {
	return &Collector{}
}

// ReconcileSucceeded records a confirmed mutation and its round trip time
func (c *Collector) ReconcileSucceeded(latency time.Duration) {
	c.reconcileOK.Add(1)
	c.latencyNanos.Add(int64(latency))
	c.latencyCount.Add(1)
}

// ReconcileFailed records a rejected mutation
func (c *Collector) ReconcileFailed() {
	c.reconcileFail.Add(1)
}

// RollbackApplied records an optimistic state that had to be reverted
func (c *Collector) RollbackApplied() {
	c.rollbacks.Add(1)
}

// ReplayAttempted records one queued operation replay attempt
func (c *Collector) ReplayAttempted() {
	c.replays.Add(1)
}

func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		ReconcileOK:   c.reconcileOK.Load(),
		ReconcileFail: c.reconcileFail.Load(),
		Rollbacks:     c.rollbacks.Load(),
		Replays:       c.replays.Load(),
	}

	if count := c.latencyCount.Load(); count > 0 {
		snap.AverageLatency = time.Duration(c.latencyNanos.Load() / count)
	}

	return snap
}
