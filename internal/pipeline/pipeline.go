// Package pipeline wires the fetch, aggregate, and render stages behind the
// dedup caches and exposes the consumer API: metadata, single grids, all
// realizations at an hour, rendered frames, and point time series.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/precip-render-service/internal/dedup"
	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
)

const metadataKey = "metadata"

// GridFetcher retrieves uncached grids and metadata from the data source.
type GridFetcher interface {
	FetchGrid(ctx context.Context, key domain.GridKey) (domain.Grid, error)
	FetchMetadata(ctx context.Context) (domain.Metadata, error)
}

// GridSource is the read side consumed by aggregation and inspection.
type GridSource interface {
	GetMetadata(ctx context.Context) (domain.Metadata, error)
	GetGrid(ctx context.Context, realization int, t domain.TimeLabel) (domain.Grid, error)
	GetAllRealizations(ctx context.Context, t domain.TimeLabel) ([]domain.Grid, error)
}

// StoreOptions bounds the DataStore's caches and fan-out.
type StoreOptions struct {
	GridCacheSize int // 0 keeps every grid
	Concurrency   int // parallel fetches per GetAllRealizations call
}

// DataStore serves grids and metadata through dedup caches. Grids are
// immutable once cached and shared between callers.
type DataStore struct {
	fetcher     GridFetcher
	metadata    *dedup.Cache[domain.Metadata]
	grids       *dedup.Cache[domain.Grid]
	concurrency int
	logger      *slog.Logger
	ready       atomic.Bool
}

// NewDataStore creates a store over fetcher.
func NewDataStore(fetcher GridFetcher, opts StoreOptions, logger *slog.Logger, metrics *observability.Metrics) *DataStore {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &DataStore{
		fetcher:     fetcher,
		metadata:    dedup.New[domain.Metadata]("metadata", 1, metrics, logger),
		grids:       dedup.New[domain.Grid]("grid", opts.GridCacheSize, metrics, logger),
		concurrency: opts.Concurrency,
		logger:      logger,
	}
}

// CheckReadiness returns nil once metadata has been loaded. While not ready it
// attempts the load itself so readiness recovers without other traffic.
func (s *DataStore) CheckReadiness(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if _, err := s.GetMetadata(ctx); err != nil {
		return fmt.Errorf("metadata not loaded: %w", err)
	}
	return nil
}

// GetMetadata returns the dataset descriptor, fetching it at most once per
// successful load.
func (s *DataStore) GetMetadata(ctx context.Context) (domain.Metadata, error) {
	meta, err := s.metadata.Get(ctx, metadataKey, s.fetcher.FetchMetadata)
	if err != nil {
		return domain.Metadata{}, err
	}
	if !s.ready.Swap(true) {
		s.logger.Info("metadata loaded",
			"real_min", meta.RealizationMin,
			"real_max", meta.RealizationMax,
			"hour_min", meta.HourMin,
			"hour_max", meta.HourMax,
		)
	}
	return meta, nil
}

// GetGrid returns one realization's grid at hour t.
func (s *DataStore) GetGrid(ctx context.Context, realization int, t domain.TimeLabel) (domain.Grid, error) {
	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return domain.Grid{}, err
	}
	if !meta.HasRealization(realization) {
		return domain.Grid{}, fmt.Errorf("realization %d not in [%d, %d): %w",
			realization, meta.RealizationMin, meta.RealizationMax, domain.ErrRealizationOutOfRange)
	}
	if !meta.HasHour(t) {
		return domain.Grid{}, fmt.Errorf("time %s not in [%s, %s): %w", t, meta.HourMin, meta.HourMax, domain.ErrTimeOutOfRange)
	}
	return s.grid(ctx, domain.GridKey{Realization: realization, Time: t})
}

func (s *DataStore) grid(ctx context.Context, key domain.GridKey) (domain.Grid, error) {
	return s.grids.Get(ctx, key.String(), func(ctx context.Context) (domain.Grid, error) {
		return s.fetcher.FetchGrid(ctx, key)
	})
}

// GetAllRealizations returns every realization's grid at hour t, in
// realization order. An empty realization range yields an empty slice.
func (s *DataStore) GetAllRealizations(ctx context.Context, t domain.TimeLabel) ([]domain.Grid, error) {
	meta, err := s.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	if !meta.HasHour(t) {
		return nil, fmt.Errorf("time %s not in [%s, %s): %w", t, meta.HourMin, meta.HourMax, domain.ErrTimeOutOfRange)
	}

	realizations := meta.Realizations()
	grids := make([]domain.Grid, len(realizations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, r := range realizations {
		g.Go(func() error {
			grid, err := s.grid(gctx, domain.GridKey{Realization: r, Time: t})
			if err != nil {
				return err
			}
			grids[i] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Report the caller's own cancellation rather than the group's.
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, context.Canceled) {
			return nil, ctxErr
		}
		return nil, err
	}
	return grids, nil
}
