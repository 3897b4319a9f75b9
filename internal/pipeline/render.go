package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/precip-render-service/internal/dedup"
	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
)

// Renderer produces overlay frames, coalescing concurrent requests for the
// same mode and hour and keeping every completed frame.
type Renderer struct {
	aggregator *Aggregator
	frames     *dedup.Cache[domain.RenderedImage]
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRenderer creates a renderer. cacheSize 0 keeps every frame.
func NewRenderer(aggregator *Aggregator, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Renderer {
	return &Renderer{
		aggregator: aggregator,
		frames:     dedup.New[domain.RenderedImage]("render", cacheSize, metrics, logger),
		logger:     logger,
		metrics:    metrics,
	}
}

// Render returns the frame for key. The returned image is shared.
func (r *Renderer) Render(ctx context.Context, key domain.RenderKey) (domain.RenderedImage, error) {
	if !key.Mode.Valid() {
		return domain.RenderedImage{}, &domain.UnknownModeError{Mode: key.Mode.String()}
	}
	if key.Mode == domain.ModeNone {
		// Empty frames cost nothing to build and are not cached, so arbitrary
		// time labels cannot grow the cache.
		return domain.Colorize(key, domain.EmptyGrid())
	}
	return r.frames.Get(ctx, key.String(), func(ctx context.Context) (domain.RenderedImage, error) {
		return r.render(ctx, key)
	})
}

// Cached reports whether the frame for key is already rendered.
func (r *Renderer) Cached(key domain.RenderKey) bool {
	_, ok := r.frames.Peek(key.String())
	return ok
}

func (r *Renderer) render(ctx context.Context, key domain.RenderKey) (domain.RenderedImage, error) {
	grid, err := r.aggregator.Aggregate(ctx, key.Mode, key.Time)
	if err != nil {
		r.metrics.RenderErrors.WithLabelValues(key.Mode.String()).Inc()
		return domain.RenderedImage{}, err
	}

	start := time.Now()
	img, err := domain.Colorize(key, grid)
	r.metrics.RenderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.RenderErrors.WithLabelValues(key.Mode.String()).Inc()
		return domain.RenderedImage{}, err
	}

	r.logger.Debug("frame rendered", "key", key.String(), "width", img.Width, "height", img.Height, "bytes", len(img.PNG))
	return img, nil
}
