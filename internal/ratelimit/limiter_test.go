package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_EnforcesMinimumSpacing(t *testing.T) {
	t.Parallel()

	l := New()
	ctx := context.Background()

	const n = 4
	const rps = 50.0 // 20ms spacing

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(ctx, "acl", rps, 1))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, n)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 1; i < n; i++ {
		gap := stamps[i].Sub(stamps[i-1])
		// Allow modest scheduler slop below the configured 20ms spacing.
		require.GreaterOrEqual(t, gap, 15*time.Millisecond,
			"requests %d and %d were issued %v apart", i-1, i, gap)
	}
}

func TestLimiter_SeparateConfigsDoNotShareBuckets(t *testing.T) {
	t.Parallel()

	l := New()
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "a", 1, 1))
	require.NoError(t, l.Wait(ctx, "b", 1, 1))
	// Two different configs each hold a full bucket, so neither call waits.
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestLimiter_UnlimitedWhenZero(t *testing.T) {
	t.Parallel()

	l := New()
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "open", 0, 0))
	}
	require.Less(t, time.Since(start), time.Second)
}

func TestLimiter_WaitRespectsContext(t *testing.T) {
	t.Parallel()

	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Drain the single token, then the next wait must fail on the deadline.
	require.NoError(t, l.Wait(ctx, "slow", 0.1, 1))
	err := l.Wait(ctx, "slow", 0.1, 1)
	require.Error(t, err)
}
