package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
	"github.com/couchcryptid/precip-render-service/internal/pipeline"
)

const (
	hour0 = domain.TimeLabel("2024-04-26T15")
	hour1 = domain.TimeLabel("2024-04-26T16")
)

// fakeFetcher serves grids from memory and counts every fetch.
type fakeFetcher struct {
	mu        sync.Mutex
	meta      domain.Metadata
	metaErr   error
	grids     map[domain.GridKey]domain.Grid
	errs      map[domain.GridKey]error
	calls     map[domain.GridKey]int
	metaCalls int
	gate      chan struct{} // when set, grid fetches block until closed
}

func newFakeFetcher(meta domain.Metadata) *fakeFetcher {
	return &fakeFetcher{
		meta:  meta,
		grids: make(map[domain.GridKey]domain.Grid),
		errs:  make(map[domain.GridKey]error),
		calls: make(map[domain.GridKey]int),
	}
}

func (f *fakeFetcher) put(r int, t domain.TimeLabel, g domain.Grid) {
	f.grids[domain.GridKey{Realization: r, Time: t}] = g
}

func (f *fakeFetcher) fail(r int, t domain.TimeLabel, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[domain.GridKey{Realization: r, Time: t}] = err
}

func (f *fakeFetcher) recover(r int, t domain.TimeLabel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, domain.GridKey{Realization: r, Time: t})
}

func (f *fakeFetcher) FetchMetadata(_ context.Context) (domain.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	return f.meta, f.metaErr
}

func (f *fakeFetcher) FetchGrid(_ context.Context, key domain.GridKey) (domain.Grid, error) {
	f.mu.Lock()
	f.calls[key]++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[key]; ok {
		return domain.Grid{}, err
	}
	g, ok := f.grids[key]
	if !ok {
		return domain.Grid{}, &domain.FetchError{Object: key.String(), Status: http.StatusNotFound}
	}
	return g, nil
}

func (f *fakeFetcher) gridCalls(r int, t domain.TimeLabel) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[domain.GridKey{Realization: r, Time: t}]
}

func (f *fakeFetcher) totalGridCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func testMeta(realMin, realMax int) domain.Metadata {
	return domain.Metadata{RealizationMin: realMin, RealizationMax: realMax, HourMin: hour0, HourMax: "2024-04-26T17"}
}

func row(values ...float64) domain.Grid {
	return domain.Grid{Width: len(values), Height: 1, Values: values}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	fetcher    *fakeFetcher
	store      *pipeline.DataStore
	aggregator *pipeline.Aggregator
	renderer   *pipeline.Renderer
	inspector  *pipeline.Inspector
	metrics    *observability.Metrics
}

func newHarness(t *testing.T, f *fakeFetcher) *harness {
	t.Helper()
	m := observability.NewMetricsForTesting()
	logger := discardLogger()
	store := pipeline.NewDataStore(f, pipeline.StoreOptions{Concurrency: 4}, logger, m)
	agg := pipeline.NewAggregator(store, logger, m)
	return &harness{
		fetcher:    f,
		store:      store,
		aggregator: agg,
		renderer:   pipeline.NewRenderer(agg, 0, logger, m),
		inspector:  pipeline.NewInspector(store, 4, logger),
		metrics:    m,
	}
}
