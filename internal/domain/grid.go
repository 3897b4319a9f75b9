package domain

import (
	"fmt"
	"math"
	"time"
)

// GridKey identifies one realization's grid at one hour.
type GridKey struct {
	Realization int
	Time        TimeLabel
}

// String returns the deterministic cache key, e.g. "real-3-t-2024-04-26T15".
func (k GridKey) String() string {
	return fmt.Sprintf("real-%d-t-%s", k.Realization, k.Time)
}

// Grid is a rectangular field of precipitation values. Values must be
// treated as read-only once the grid is constructed: cached grids are shared
// between callers.
type Grid struct {
	Width  int
	Height int
	Values []float64
}

// NewGrid validates that len(values) == width*height.
func NewGrid(width, height int, values []float64) (Grid, error) {
	if width < 0 || height < 0 {
		return Grid{}, fmt.Errorf("invalid grid size %dx%d", width, height)
	}
	if len(values) != width*height {
		return Grid{}, fmt.Errorf("grid %dx%d needs %d values, got %d", width, height, width*height, len(values))
	}
	return Grid{Width: width, Height: height, Values: values}, nil
}

// EmptyGrid is the zero-size grid produced by the NONE mode.
func EmptyGrid() Grid {
	return Grid{Values: []float64{}}
}

// Empty reports whether the grid has no cells.
func (g Grid) Empty() bool {
	return g.Width == 0 || g.Height == 0
}

// SameShape reports whether g and o have identical dimensions.
func (g Grid) SameShape(o Grid) bool {
	return g.Width == o.Width && g.Height == o.Height
}

// Index returns the position of cell (x, y) in Values, or -1 when the cell is
// outside the grid.
func (g Grid) Index(x, y int) int {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return -1
	}
	return y*g.Width + x
}

// At returns the value of cell (x, y), or NaN when the cell is outside the grid.
func (g Grid) At(x, y int) float64 {
	i := g.Index(x, y)
	if i < 0 {
		return math.NaN()
	}
	return g.Values[i]
}

// Metadata describes the realization and hour ranges available upstream.
// Both ranges are half-open.
type Metadata struct {
	RealizationMin int       `json:"real_min"`
	RealizationMax int       `json:"real_max"`
	HourMin        TimeLabel `json:"hour_min"`
	HourMax        TimeLabel `json:"hour_max"`
}

// Realizations lists every realization index in [RealizationMin, RealizationMax).
func (m Metadata) Realizations() []int {
	n := m.RealizationMax - m.RealizationMin
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = m.RealizationMin + i
	}
	return out
}

// HasRealization reports whether r lies in [RealizationMin, RealizationMax).
func (m Metadata) HasRealization(r int) bool {
	return r >= m.RealizationMin && r < m.RealizationMax
}

// HasHour reports whether t lies in [HourMin, HourMax).
func (m Metadata) HasHour(t TimeLabel) bool {
	return t >= m.HourMin && t < m.HourMax
}

// HourCount returns the number of hours in [HourMin, HourMax).
func (m Metadata) HourCount() int {
	start, err1 := m.HourMin.Time()
	end, err2 := m.HourMax.Time()
	if err1 != nil || err2 != nil || !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Hour)
}

// Hours lists every label in [HourMin, HourMax) in order.
func (m Metadata) Hours() []TimeLabel {
	n := m.HourCount()
	out := make([]TimeLabel, n)
	for i := range out {
		out[i] = m.HourMin.Add(i)
	}
	return out
}

// HourAt converts an hour offset from HourMin into a label.
func (m Metadata) HourAt(offset int) TimeLabel {
	return m.HourMin.Add(offset)
}
