package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/precip-render-service/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
)

const (
	kindGrid     = "grid"
	kindMetadata = "metadata"
)

// Fetcher retrieves and decodes grids and metadata from a Source. It does no
// caching; every call is one retrieval.
type Fetcher struct {
	source   Source
	variable string
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewFetcher creates a fetcher reading variable from NetCDF grid objects.
func NewFetcher(source Source, variable string, metrics *observability.Metrics, logger *slog.Logger) *Fetcher {
	if variable == "" {
		variable = netcdf.DefaultVariable
	}
	return &Fetcher{source: source, variable: variable, metrics: metrics, logger: logger}
}

// FetchGrid retrieves and decodes the grid for key.
func (f *Fetcher) FetchGrid(ctx context.Context, key domain.GridKey) (domain.Grid, error) {
	name := ObjectName(key)
	data, err := f.fetch(ctx, kindGrid, name)
	if err != nil {
		return domain.Grid{}, err
	}

	g, err := netcdf.Decode(name, data, f.variable)
	if err != nil {
		f.logger.Warn("grid decode failed", "key", key.String(), "error", err)
		return domain.Grid{}, err
	}
	return g, nil
}

// wireMetadata is the JSON form of metadata.json.
type wireMetadata struct {
	RealMin *int   `json:"real_min"`
	RealMax *int   `json:"real_max"`
	HourMin string `json:"hour_min"`
	HourMax string `json:"hour_max"`
}

// FetchMetadata retrieves and decodes the dataset descriptor.
func (f *Fetcher) FetchMetadata(ctx context.Context) (domain.Metadata, error) {
	data, err := f.fetch(ctx, kindMetadata, MetadataObject)
	if err != nil {
		return domain.Metadata{}, err
	}

	var w wireMetadata
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.Metadata{}, &domain.FormatError{Object: MetadataObject, Reason: "invalid JSON", Err: err}
	}
	if w.RealMin == nil || w.RealMax == nil {
		return domain.Metadata{}, &domain.FormatError{Object: MetadataObject, Reason: "missing real_min or real_max"}
	}
	hourMin, err := domain.ParseTimeLabel(w.HourMin)
	if err != nil {
		return domain.Metadata{}, &domain.FormatError{Object: MetadataObject, Reason: "invalid hour_min", Err: err}
	}
	hourMax, err := domain.ParseTimeLabel(w.HourMax)
	if err != nil {
		return domain.Metadata{}, &domain.FormatError{Object: MetadataObject, Reason: "invalid hour_max", Err: err}
	}

	return domain.Metadata{
		RealizationMin: *w.RealMin,
		RealizationMax: *w.RealMax,
		HourMin:        hourMin,
		HourMax:        hourMax,
	}, nil
}

func (f *Fetcher) fetch(ctx context.Context, kind, name string) ([]byte, error) {
	start := time.Now()
	data, err := f.source.Fetch(ctx, name)
	f.metrics.SourceDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		var fe *domain.FetchError
		if errors.As(err, &fe) && fe.NotFound() {
			outcome = "not_found"
		}
		f.metrics.SourceRequests.WithLabelValues(kind, outcome).Inc()
		f.logger.Warn("source fetch failed", "object", name, "error", err)

		if !errors.As(err, &fe) {
			err = &domain.FetchError{Object: name, Err: err}
		}
		return nil, err
	}

	f.metrics.SourceRequests.WithLabelValues(kind, "success").Inc()
	f.metrics.SourceBytes.Add(float64(len(data)))
	return data, nil
}
