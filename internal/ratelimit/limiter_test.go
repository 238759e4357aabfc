package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Interval(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, New(2).MinInterval())
	assert.Equal(t, time.Second, New(0).MinInterval())
	assert.Equal(t, time.Second, New(-3).MinInterval())
}

func TestWaitIfNeeded_FirstCallIsImmediate(t *testing.T) {
	l := New(1)

	start := time.Now()
	require.NoError(t, l.WaitIfNeeded(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitIfNeeded_SpacesConsecutiveCalls(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	require.NoError(t, l.WaitIfNeeded(ctx))
	first := time.Now()
	require.NoError(t, l.WaitIfNeeded(ctx))

	assert.GreaterOrEqual(t, time.Since(first), 500*time.Millisecond)
}

func TestWaitIfNeeded_ConcurrentCallersAreSerialized(t *testing.T) {
	l := New(10) // 100ms
	ctx := context.Background()

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.WaitIfNeeded(ctx))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, 4)
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	// three enforced gaps after the first call
	assert.GreaterOrEqual(t, last.Sub(first), 290*time.Millisecond)
}

func TestWaitIfNeeded_ContextCancelled(t *testing.T) {
	l := New(0.5) // 2s
	require.NoError(t, l.WaitIfNeeded(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.WaitIfNeeded(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestReset_AllowsImmediateCall(t *testing.T) {
	l := New(0.5)
	ctx := context.Background()
	require.NoError(t, l.WaitIfNeeded(ctx))

	l.Reset()

	start := time.Now()
	require.NoError(t, l.WaitIfNeeded(ctx))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
