// Package prefetch periodically renders every frame of the configured modes
// so that map playback is served from the render cache.
package prefetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
)

// MetadataSource provides the hour range to walk.
type MetadataSource interface {
	GetMetadata(ctx context.Context) (domain.Metadata, error)
}

// FrameRenderer renders and caches frames.
type FrameRenderer interface {
	Render(ctx context.Context, key domain.RenderKey) (domain.RenderedImage, error)
	Cached(key domain.RenderKey) bool
}

// Config controls what is prefetched and how often.
type Config struct {
	Modes       []domain.VisualizationMode
	Interval    time.Duration
	Concurrency int
}

// Prefetcher runs prefetch passes on a gocron schedule.
type Prefetcher struct {
	scheduler *gocron.Scheduler
	cfg       Config
	meta      MetadataSource
	frames    FrameRenderer
	logger    *slog.Logger
	metrics   *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a prefetcher. Nothing runs until Start.
func New(cfg Config, meta MetadataSource, frames FrameRenderer, logger *slog.Logger, metrics *observability.Metrics) *Prefetcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		scheduler: gocron.NewScheduler(time.UTC),
		cfg:       cfg,
		meta:      meta,
		frames:    frames,
		logger:    logger.With("component", "prefetch"),
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules a pass every Interval, the first one immediately.
// Passes never overlap.
func (p *Prefetcher) Start() error {
	if len(p.cfg.Modes) == 0 {
		p.logger.Info("no prefetch modes configured; nothing to schedule")
		return nil
	}

	_, err := p.scheduler.Every(p.cfg.Interval).SingletonMode().Do(p.tick)
	if err != nil {
		return fmt.Errorf("schedule prefetch: %w", err)
	}

	p.scheduler.StartAsync()
	p.metrics.PrefetchEnabled.Set(1)
	p.logger.Info("prefetch scheduled", "interval", p.cfg.Interval, "modes", len(p.cfg.Modes))
	return nil
}

// Stop cancels a running pass and stops the scheduler, waiting for the pass to return.
func (p *Prefetcher) Stop() {
	p.cancel()
	p.scheduler.Stop()
	p.metrics.PrefetchEnabled.Set(0)
}

func (p *Prefetcher) tick() {
	if p.ctx.Err() != nil {
		return
	}
	if _, err := p.RunOnce(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("prefetch pass failed", "error", err)
	}
}

// RunOnce renders every uncached frame for the configured modes across the
// full hour range and returns how many frames it rendered. Frame failures do
// not stop the pass; they are joined into the returned error.
func (p *Prefetcher) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	meta, err := p.meta.GetMetadata(ctx)
	if err != nil {
		p.metrics.PrefetchRuns.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("prefetch metadata: %w", err)
	}

	var (
		mu       sync.Mutex
		rendered int
		errs     []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, mode := range p.cfg.Modes {
		if mode == domain.ModeNone {
			continue
		}
		for _, t := range meta.Hours() {
			key := domain.RenderKey{Mode: mode, Time: t}
			if p.frames.Cached(key) {
				continue
			}
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				_, err := p.frames.Render(gctx, key)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return nil
				}
				rendered++
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		p.metrics.PrefetchRuns.WithLabelValues("error").Inc()
		p.logger.Warn("prefetch pass incomplete",
			"rendered", rendered, "failed", len(errs), "duration", time.Since(start))
		return rendered, errors.Join(errs...)
	}

	p.metrics.PrefetchRuns.WithLabelValues("success").Inc()
	p.logger.Info("prefetch pass complete", "rendered", rendered, "duration", time.Since(start))
	return rendered, nil
}
