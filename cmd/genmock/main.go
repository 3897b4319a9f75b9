// Command genmock writes a synthetic precipitation ensemble in the layout the
// service reads: metadata.json plus one NetCDF file per realization and hour.
// Each realization carries a rain cell drifting across the grid with its own
// offset and intensity, so the aggregation modes produce visibly different
// frames.
//
// Usage:
//
//	go run ./cmd/genmock -out data/precipitations -realizations 10 -hours 48
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/couchcryptid/precip-render-service/internal/adapter/datasource"
	"github.com/couchcryptid/precip-render-service/internal/adapter/netcdf"
	"github.com/couchcryptid/precip-render-service/internal/domain"
)

type options struct {
	out          string
	realizations int
	hours        int
	start        domain.TimeLabel
	width        int
	height       int
	seed         uint64
	variable     string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	realizations := flag.Int("realizations", 10, "number of ensemble members")
	hours := flag.Int("hours", 48, "number of forecast hours")
	start := flag.String("start", "2024-04-26T15", "first forecast hour (YYYY-MM-DDTHH)")
	width := flag.Int("width", 64, "grid width")
	height := flag.Int("height", 48, "grid height")
	seed := flag.Uint64("seed", 1, "random seed")
	variable := flag.String("variable", netcdf.DefaultVariable, "NetCDF variable name")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	t, err := domain.ParseTimeLabel(*start)
	if err != nil {
		return err
	}

	opts := options{
		out:          *out,
		realizations: *realizations,
		hours:        *hours,
		start:        t,
		width:        *width,
		height:       *height,
		seed:         *seed,
		variable:     *variable,
	}
	n, err := generate(opts)
	if err != nil {
		return err
	}
	log.Printf("wrote metadata and %d grid files to %s", n, opts.out)
	return nil
}

// generate writes the dataset and returns the number of grid files.
func generate(o options) (int, error) {
	if o.realizations < 1 || o.hours < 1 || o.width < 1 || o.height < 1 {
		return 0, fmt.Errorf("realizations, hours, width, and height must be positive")
	}
	if err := os.MkdirAll(o.out, 0o755); err != nil {
		return 0, err
	}

	meta := map[string]any{
		"real_min": 1,
		"real_max": o.realizations + 1,
		"hour_min": o.start.String(),
		"hour_max": o.start.Add(o.hours).String(),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(filepath.Join(o.out, datasource.MetadataObject), data, 0o644); err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	files := 0
	for r := 1; r <= o.realizations; r++ {
		cell := newRainCell(rng, o.width, o.height)
		for h := range o.hours {
			g, err := cell.grid(h, o.width, o.height)
			if err != nil {
				return files, err
			}
			nc, err := netcdf.Encode(g, o.variable)
			if err != nil {
				return files, err
			}
			name := datasource.ObjectName(domain.GridKey{Realization: r, Time: o.start.Add(h)})
			if err := os.WriteFile(filepath.Join(o.out, name), nc, 0o644); err != nil {
				return files, err
			}
			files++
		}
	}
	return files, nil
}

// rainCell is a Gaussian precipitation blob moving at constant velocity.
type rainCell struct {
	x0, y0 float64
	vx, vy float64
	peak   float64
	radius float64
}

func newRainCell(rng *rand.Rand, width, height int) rainCell {
	return rainCell{
		x0:     rng.Float64() * float64(width) / 2,
		y0:     rng.Float64() * float64(height),
		vx:     0.5 + rng.Float64(),
		vy:     rng.Float64() - 0.5,
		peak:   2 + rng.Float64()*8,
		radius: float64(min(width, height)) / (4 + rng.Float64()*4),
	}
}

// grid samples the cell at hour h. The outermost column is left as missing data.
func (c rainCell) grid(h, width, height int) (domain.Grid, error) {
	cx := c.x0 + c.vx*float64(h)
	cy := c.y0 + c.vy*float64(h)
	values := make([]float64, width*height)
	for y := range height {
		for x := range width {
			i := y*width + x
			if x == width-1 && width > 1 {
				values[i] = math.NaN()
				continue
			}
			d2 := (float64(x)-cx)*(float64(x)-cx) + (float64(y)-cy)*(float64(y)-cy)
			v := c.peak * math.Exp(-d2/(2*c.radius*c.radius))
			if v < 0.05 {
				v = 0
			}
			values[i] = math.Round(v*100) / 100
		}
	}
	return domain.NewGrid(width, height, values)
}
