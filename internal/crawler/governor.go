package crawler

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Governor bounds the number of fetches in flight. Waiters are served in
// FIFO order.
type Governor struct {
	sem      *semaphore.Weighted
	limit    int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewGovernor returns a Governor admitting at most limit concurrent holders.
func NewGovernor(limit int) *Governor {
	if limit < 1 {
		limit = 1
	}
	return &Governor{sem: semaphore.NewWeighted(int64(limit)), limit: int64(limit)}
}

// Acquire blocks until a permit is available or ctx is done.
func (g *Governor) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fetch permit: %w", err)
	}
	current := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	return nil
}

// Release returns a permit.
func (g *Governor) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// InFlight reports the permits currently held.
func (g *Governor) InFlight() int { return int(g.inFlight.Load()) }

// Peak reports the highest number of permits ever held at once.
func (g *Governor) Peak() int { return int(g.peak.Load()) }

// Limit reports the configured bound.
func (g *Governor) Limit() int { return int(g.limit) }
