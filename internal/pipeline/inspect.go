package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// Inspector builds per-cell time series across every hour and realization.
type Inspector struct {
	source      GridSource
	concurrency int
	logger      *slog.Logger
}

// NewInspector creates an inspector fetching up to concurrency hours at once.
func NewInspector(source GridSource, concurrency int, logger *slog.Logger) *Inspector {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Inspector{source: source, concurrency: concurrency, logger: logger}
}

// PointSeries returns the values at cell (x, y) for every hour in the dataset.
// Hours whose objects are missing upstream become gaps (all NaN); other
// source errors fail the whole series.
func (in *Inspector) PointSeries(ctx context.Context, x, y int) (domain.PointSeries, error) {
	meta, err := in.source.GetMetadata(ctx)
	if err != nil {
		return domain.PointSeries{}, err
	}

	realizations := meta.Realizations()
	hours := meta.Hours()
	series := domain.PointSeries{X: x, Y: y, Realizations: realizations, Points: make([]domain.SeriesPoint, len(hours))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)
	for i, t := range hours {
		g.Go(func() error {
			values, err := in.cellValues(gctx, t, len(realizations), x, y)
			if err != nil {
				return err
			}
			series.Points[i] = domain.NewSeriesPoint(i, t, values)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.PointSeries{}, err
	}
	return series, nil
}

func (in *Inspector) cellValues(ctx context.Context, t domain.TimeLabel, n, x, y int) ([]float64, error) {
	values := make([]float64, n)
	grids, err := in.source.GetAllRealizations(ctx, t)
	if err != nil {
		var fe *domain.FetchError
		if errors.As(err, &fe) && fe.NotFound() {
			in.logger.Warn("hour missing upstream, leaving a gap", "time", t, "error", err)
			for i := range values {
				values[i] = math.NaN()
			}
			return values, nil
		}
		return nil, err
	}

	for i, g := range grids {
		if g.Index(x, y) < 0 {
			return nil, fmt.Errorf("cell (%d, %d) outside %dx%d grid at %s: %w", x, y, g.Width, g.Height, t, domain.ErrPointOutOfRange)
		}
		values[i] = g.At(x, y)
	}
	return values, nil
}
