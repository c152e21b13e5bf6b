// Package scheduler drives background refreshes and bounds every outbound API call.
package scheduler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most a fixed number of concurrent API calls. Waiters are
// admitted in FIFO order.
type Gate struct {
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewGate creates a gate admitting size concurrent calls.
func NewGate(size int64) *Gate {
	return &Gate{sem: semaphore.NewWeighted(size)}
}

// Do waits for a slot, runs fn and releases the slot. If ctx is done before a
// slot frees up, fn is not called and ctx's error is returned.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}

	return fn(ctx)
}

// InFlight returns the number of calls currently admitted.
func (g *Gate) InFlight() int64 { return g.inFlight.Load() }

// Peak returns the highest number of calls ever admitted at once.
func (g *Gate) Peak() int64 { return g.peak.Load() }
