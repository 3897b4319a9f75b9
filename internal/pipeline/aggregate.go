package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
)

// Aggregator collapses the realizations at one hour into a single grid.
type Aggregator struct {
	source  GridSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source GridSource, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{source: source, logger: logger, metrics: metrics}
}

// Aggregate applies mode to the grids at hour t. ModeNone returns an empty
// grid without touching the source; ModeReal1 returns realization 1 as is.
func (a *Aggregator) Aggregate(ctx context.Context, mode domain.VisualizationMode, t domain.TimeLabel) (domain.Grid, error) {
	if !mode.Valid() {
		return domain.Grid{}, &domain.UnknownModeError{Mode: mode.String()}
	}
	if mode == domain.ModeNone {
		return domain.EmptyGrid(), nil
	}

	start := time.Now()
	defer func() {
		a.metrics.AggregateDuration.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	}()

	if mode == domain.ModeReal1 {
		return a.source.GetGrid(ctx, 1, t)
	}

	meta, err := a.source.GetMetadata(ctx)
	if err != nil {
		return domain.Grid{}, err
	}
	grids, err := a.source.GetAllRealizations(ctx, t)
	if err != nil {
		return domain.Grid{}, err
	}
	if err := domain.CheckShapes(t, meta.Realizations(), grids); err != nil {
		a.logger.Error("cannot aggregate realizations", "mode", mode.String(), "time", t, "error", err)
		return domain.Grid{}, err
	}

	switch mode {
	case domain.ModeMean:
		return domain.Mean(grids), nil
	case domain.ModeMax:
		return domain.Max(grids), nil
	case domain.ModeMin:
		return domain.Min(grids), nil
	default:
		return domain.Grid{}, &domain.UnknownModeError{Mode: mode.String()}
	}
}
