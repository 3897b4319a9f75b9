package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/precip-render-service/internal/observability"
)

func newTestCache(maxEntries int) (*Cache[string], *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return New[string]("test", maxEntries, m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func TestCache_HitAfterLoad(t *testing.T) {
	c, m := newTestCache(0)
	var calls int
	load := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	v, err := c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	v, err = c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("test", resultMiss)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("test", resultHit)), 0)
}

func TestCache_ConcurrentGetsShareOneLoad(t *testing.T) {
	c, _ := newTestCache(0)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "grid", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Get(context.Background(), "k", load)
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "grid", results[i])
	}
}

func TestCache_DistinctKeysLoadSeparately(t *testing.T) {
	c, _ := newTestCache(0)
	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	_, _ = c.Get(context.Background(), "a", load)
	_, _ = c.Get(context.Background(), "b", load)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_FailureIsNotStored(t *testing.T) {
	c, _ := newTestCache(0)
	boom := errors.New("boom")
	fail := true
	load := func(context.Context) (string, error) {
		if fail {
			return "", boom
		}
		return "ok", nil
	}

	_, err := c.Get(context.Background(), "k", load)
	require.ErrorIs(t, err, boom)
	_, ok := c.Peek("k")
	assert.False(t, ok)

	fail = false
	v, err := c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_WaiterRetriesAfterFailedLoad(t *testing.T) {
	c, m := newTestCache(0)
	boom := errors.New("boom")
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "", boom
		}
		return "second", nil
	}

	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "k", load)
		leaderErr <- err
	}()
	<-started

	type result struct {
		v   string
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		v, err := c.Get(context.Background(), "k", load)
		waiter <- result{v, err}
	}()

	// Leader and waiter both attached to the same flight.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.CacheWaiters.WithLabelValues("test")) == 2
	}, time.Second, time.Millisecond)
	close(release)

	require.ErrorIs(t, <-leaderErr, boom, "the caller that ran the load sees its error")
	got := <-waiter
	require.NoError(t, got.err, "a joined caller starts its own load")
	assert.Equal(t, "second", got.v)
	assert.Equal(t, int32(2), calls.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("test", resultRetry)), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.CacheWaiters.WithLabelValues("test")), 0)
}

func TestCache_CancelledWaiterDoesNotCancelLoad(t *testing.T) {
	c, _ := newTestCache(0)
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(ctx context.Context) (string, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "k", load)
		errCh <- err
	}()

	<-started
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		v, ok := c.Peek("k")
		return ok && v == "done"
	}, time.Second, time.Millisecond)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, m := newTestCache(2)
	value := func(v string) LoadFunc[string] {
		return func(context.Context) (string, error) { return v, nil }
	}
	ctx := context.Background()

	_, _ = c.Get(ctx, "a", value("a"))
	_, _ = c.Get(ctx, "b", value("b"))
	_, _ = c.Get(ctx, "a", value("a")) // a is now most recent
	_, _ = c.Get(ctx, "c", value("c"))

	_, ok := c.Peek("b")
	assert.False(t, ok, "b should be evicted")
	_, ok = c.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheEvictions.WithLabelValues("test")), 0)
}

func TestCache_PeekDoesNotRefreshRecency(t *testing.T) {
	c, _ := newTestCache(2)
	value := func(v string) LoadFunc[string] {
		return func(context.Context) (string, error) { return v, nil }
	}
	ctx := context.Background()

	_, _ = c.Get(ctx, "a", value("a"))
	_, _ = c.Get(ctx, "b", value("b"))
	_, ok := c.Peek("a")
	require.True(t, ok)
	_, _ = c.Get(ctx, "c", value("c"))

	_, ok = c.Peek("a")
	assert.False(t, ok, "a stays least recently used after Peek")
	_, ok = c.Peek("b")
	assert.True(t, ok)
}

func TestCache_UnboundedKeepsEverything(t *testing.T) {
	c, m := newTestCache(0)
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("k%d", i)
		_, err := c.Get(ctx, key, func(context.Context) (string, error) { return key, nil })
		require.NoError(t, err)
	}
	assert.Equal(t, 100, c.Len())
	assert.InDelta(t, 0, testutil.ToFloat64(m.CacheEvictions.WithLabelValues("test")), 0)
	assert.InDelta(t, 100, testutil.ToFloat64(m.CacheEntries.WithLabelValues("test")), 0)
}
