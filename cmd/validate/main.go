// Command validate checks a precipitation ensemble directory before it is
// served: the metadata parses, every realization×hour grid decodes with the
// expected variable and x/y dimensions, all realizations at one hour share a
// shape, and every cell holds a plausible precipitation value.
//
// Usage:
//
//	go run ./cmd/validate -dir data/precipitations
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/precip-render-service/internal/adapter/datasource"
	"github.com/couchcryptid/precip-render-service/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-render-service/internal/domain"
	"github.com/couchcryptid/precip-render-service/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "dataset directory containing metadata.json and real-N-t-T.nc files")
	variable := flag.String("variable", netcdf.DefaultVariable, "NetCDF variable name")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *dir, *variable); code != 0 {
		os.Exit(code)
	}
}

func run(w io.Writer, dir, variable string) int {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// Unregistered metrics: run may be called repeatedly in one process.
	fetcher := datasource.NewFetcher(datasource.NewDirSource(dir), variable, observability.NewMetricsForTesting(), logger)

	fmt.Fprintln(w, "=== Precipitation Ensemble Validation ===")
	fmt.Fprintln(w)

	// ── Phase 1: metadata ──
	metaPhase := &phase{name: "Phase 1: Metadata"}
	meta, err := fetcher.FetchMetadata(ctx)
	if err != nil {
		metaPhase.errorf("%v", err)
	} else {
		if meta.RealizationMax <= meta.RealizationMin {
			metaPhase.errorf("empty realization range [%d, %d)", meta.RealizationMin, meta.RealizationMax)
		}
		if meta.HourCount() == 0 {
			metaPhase.errorf("empty hour range [%s, %s)", meta.HourMin, meta.HourMax)
		}
	}
	if !metaPhase.passed() {
		report(w, []*phase{metaPhase}, 0)
		return 1
	}

	// ── Phase 2..4: grids ──
	gridPhase := &phase{name: "Phase 2: Grid Decoding"}
	shapePhase := &phase{name: "Phase 3: Shape Consistency"}
	valuePhase := &phase{name: "Phase 4: Value Ranges"}
	files := 0

	realizations := meta.Realizations()
	for _, t := range meta.Hours() {
		grids := make([]domain.Grid, 0, len(realizations))
		for _, r := range realizations {
			g, err := fetcher.FetchGrid(ctx, domain.GridKey{Realization: r, Time: t})
			if err != nil {
				gridPhase.errorf("%v", err)
				continue
			}
			files++
			grids = append(grids, g)
		}
		if len(grids) != len(realizations) {
			continue
		}

		if err := domain.CheckShapes(t, realizations, grids); err != nil {
			shapePhase.errorf("%v", err)
			continue
		}
		checkValues(valuePhase, t, grids)
	}

	phases := []*phase{metaPhase, gridPhase, shapePhase, valuePhase}
	fmt.Fprintf(w, "Dataset: %d realizations, %d hours (%s to %s)\n",
		len(realizations), meta.HourCount(), meta.HourMin, meta.HourMax.Add(-1))
	return report(w, phases, files)
}

// checkValues verifies every cell across realizations: no negative or
// infinite precipitation, and a mean that does not exceed the per-cell max.
// The MAX and MIN overlays keep the last value that beats a fixed seed, so
// their ordering says nothing about the data and is not checked.
func checkValues(p *phase, t domain.TimeLabel, grids []domain.Grid) {
	cell := make([]float64, len(grids))
	for i := range grids[0].Values {
		for k, g := range grids {
			cell[k] = g.Values[i]
		}
		lo, hi, mean := domain.CellStats(cell)
		if math.IsNaN(lo) {
			continue
		}
		if lo < 0 || math.IsInf(hi, 0) {
			p.errorf("%s cell %d: value out of range [%.3f, %.3f]", t, i, lo, hi)
			return
		}
		if mean > hi+1e-9 {
			p.errorf("%s cell %d: mean %.3f above max %.3f", t, i, mean, hi)
			return
		}
	}
}

func report(w io.Writer, phases []*phase, files int) int {
	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Grid files decoded: %d\n", files)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}
