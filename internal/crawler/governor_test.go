package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGovernor_BoundsHolders(t *testing.T) {
	t.Parallel()

	g := NewGovernor(2)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Acquire(context.Background()))
			time.Sleep(5 * time.Millisecond)
			g.Release()
		}()
	}
	wg.Wait()

	require.Equal(t, 2, g.Limit())
	require.LessOrEqual(t, g.Peak(), 2)
	require.Zero(t, g.InFlight())
}

func TestGovernor_AcquireHonoursContext(t *testing.T) {
	t.Parallel()

	g := NewGovernor(0)
	require.Equal(t, 1, g.Limit())
	require.NoError(t, g.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, g.Acquire(ctx), context.DeadlineExceeded)
	require.Equal(t, 1, g.InFlight())

	g.Release()
	require.NoError(t, g.Acquire(context.Background()))
	g.Release()
}
