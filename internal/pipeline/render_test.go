package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

func TestRenderer_ConcurrentRendersShareOneAggregation(t *testing.T) {
	f := newFakeFetcher(testMeta(1, 3))
	f.put(1, hour0, domain.Grid{Width: 2, Height: 2, Values: []float64{0, 44, 88, 132}})
	f.put(2, hour0, domain.Grid{Width: 2, Height: 2, Values: []float64{0, 44, 88, 132}})
	f.gate = make(chan struct{})
	h := newHarness(t, f)
	key := domain.RenderKey{Mode: domain.ModeMax, Time: hour0}

	const n = 10
	var wg sync.WaitGroup
	images := make([]domain.RenderedImage, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			images[i], errs[i] = h.renderer.Render(context.Background(), key)
		}(i)
	}

	require.Eventually(t, func() bool { return f.totalGridCalls() == 2 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.gridCalls(1, hour0))
	assert.Equal(t, 1, f.gridCalls(2, hour0))
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, images[0].RenderedAt, images[i].RenderedAt, "all callers see the same frame")
	}

	img, err := png.Decode(bytes.NewReader(images[0].PNG))
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
	assert.True(t, h.renderer.Cached(key))
}

func TestRenderer_NoneIsEmptyFrame(t *testing.T) {
	f := newFakeFetcher(testMeta(1, 3))
	h := newHarness(t, f)

	img, err := h.renderer.Render(context.Background(), domain.RenderKey{Mode: domain.ModeNone, Time: hour0})
	require.NoError(t, err)
	assert.True(t, img.Empty())
	assert.Nil(t, img.PNG)
	assert.Zero(t, f.totalGridCalls())
}

func TestRenderer_NoneFramesAreNotCached(t *testing.T) {
	h := newHarness(t, newFakeFetcher(testMeta(1, 3)))
	ctx := context.Background()

	for i := range 50 {
		key := domain.RenderKey{Mode: domain.ModeNone, Time: domain.TimeLabel("2030-01-01T00").Add(i)}
		img, err := h.renderer.Render(ctx, key)
		require.NoError(t, err)
		assert.True(t, img.Empty())
		assert.False(t, h.renderer.Cached(key))
	}
	assert.Zero(t, testutil.ToFloat64(h.metrics.CacheEntries.WithLabelValues("render")))
}

func TestRenderer_FailedRenderIsRetried(t *testing.T) {
	f := newFakeFetcher(testMeta(1, 2))
	f.put(1, hour0, row(10))
	f.fail(1, hour0, &domain.FetchError{Object: "real-1", Err: errors.New("timeout")})
	h := newHarness(t, f)
	key := domain.RenderKey{Mode: domain.ModeMean, Time: hour0}

	_, err := h.renderer.Render(context.Background(), key)
	require.Error(t, err)
	assert.False(t, h.renderer.Cached(key))
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RenderErrors.WithLabelValues("mean")), 0)

	f.recover(1, hour0)
	img, err := h.renderer.Render(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, img.Width)
}

func TestRenderer_UnknownMode(t *testing.T) {
	h := newHarness(t, newFakeFetcher(testMeta(1, 2)))

	_, err := h.renderer.Render(context.Background(), domain.RenderKey{Mode: domain.VisualizationMode(-1), Time: hour0})
	var um *domain.UnknownModeError
	require.True(t, errors.As(err, &um))
}
