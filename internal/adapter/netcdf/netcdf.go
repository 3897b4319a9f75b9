// Package netcdf decodes precipitation grids from NetCDF classic files.
package netcdf

import (
	"fmt"
	"math"
	"slices"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// DefaultVariable is the hourly precipitation sum published by the ensemble.
const DefaultVariable = "precipitation_amount_1hsum"

const (
	dimX      = "x"
	dimY      = "y"
	fillValue = "_FillValue"
)

// Decode reads the named data variable from a NetCDF object. The grid's width
// and height come from the variable's x and y dimensions; cells are returned
// row by row with row 0 first. Fill values become NaN.
func Decode(object string, data []byte, variable string) (domain.Grid, error) {
	f, err := cdf.Open(&memFile{buf: data})
	if err != nil {
		return domain.Grid{}, &domain.FormatError{Object: object, Reason: "not a NetCDF file", Err: err}
	}

	if !slices.Contains(f.Header.Variables(), variable) {
		return domain.Grid{}, &domain.FormatError{Object: object, Reason: fmt.Sprintf("missing variable %q", variable)}
	}

	dims := f.Header.Dimensions(variable)
	lengths := f.Header.Lengths(variable)
	xi := slices.Index(dims, dimX)
	yi := slices.Index(dims, dimY)
	if xi < 0 || yi < 0 {
		return domain.Grid{}, &domain.FormatError{Object: object, Reason: fmt.Sprintf("variable %q lacks x/y dimensions (has %v)", variable, dims)}
	}
	width, height := lengths[xi], lengths[yi]

	n := 1
	for _, l := range lengths {
		n *= l
	}
	if n != width*height {
		return domain.Grid{}, &domain.FormatError{Object: object, Reason: fmt.Sprintf("variable %q has extra non-singleton dimensions %v", variable, lengths)}
	}

	r := f.Reader(variable, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return domain.Grid{}, &domain.FormatError{Object: object, Reason: "read variable", Err: err}
	}

	values, err := toFloat64(buf)
	if err != nil {
		return domain.Grid{}, &domain.FormatError{Object: object, Reason: err.Error()}
	}
	if fill, ok := fillOf(f.Header.GetAttribute(variable, fillValue)); ok {
		for i, v := range values {
			if v == fill {
				values[i] = math.NaN()
			}
		}
	}

	// Stored x-major: transpose into row-major order.
	if xi < yi {
		values = transpose(values, width, height)
	}

	return domain.NewGrid(width, height, values)
}

func toFloat64(buf any) ([]float64, error) {
	switch b := buf.(type) {
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []float64:
		return slices.Clone(b), nil
	case []int32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported variable type %T", buf)
	}
}

func fillOf(attr any) (float64, bool) {
	switch a := attr.(type) {
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []float64:
		if len(a) > 0 {
			return a[0], true
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	case []int16:
		if len(a) > 0 {
			return float64(a[0]), true
		}
	}
	return 0, false
}

// transpose converts x-major values (index x*height+y) to row-major (y*width+x).
func transpose(values []float64, width, height int) []float64 {
	out := make([]float64, len(values))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			out[y*width+x] = values[x*height+y]
		}
	}
	return out
}

// Encode writes g as a NetCDF classic file holding a single float32 variable
// with dimensions (y, x). NaN cells are written as the fill value.
func Encode(g domain.Grid, variable string) ([]byte, error) {
	const fill = float32(-9999)

	h := cdf.NewHeader([]string{dimY, dimX}, []int{g.Height, g.Width})
	h.AddAttribute("", "title", "ensemble precipitation")
	h.AddVariable(variable, []string{dimY, dimX}, []float32{0})
	h.AddAttribute(variable, "units", "kg m-2")
	h.AddAttribute(variable, fillValue, []float32{fill})
	h.Define()

	mem := &memFile{}
	f, err := cdf.Create(mem, h)
	if err != nil {
		return nil, fmt.Errorf("create netcdf header: %w", err)
	}

	data := make([]float32, len(g.Values))
	for i, v := range g.Values {
		if math.IsNaN(v) {
			data[i] = fill
			continue
		}
		data[i] = float32(v)
	}

	end := f.Header.Lengths(variable)
	start := make([]int, len(end))
	if _, err := f.Writer(variable, start, end).Write(data); err != nil {
		return nil, fmt.Errorf("write %s: %w", variable, err)
	}
	return mem.Bytes(), nil
}
