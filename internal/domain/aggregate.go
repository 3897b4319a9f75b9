package domain

import "math"

// Seeds for the running extrema. They are not ±Inf: a cell whose values never
// beat the seed is left unset (NaN). See the package documentation.
const (
	maxSeed = math.SmallestNonzeroFloat64
	minSeed = math.MaxFloat64
)

// CheckShapes verifies that every realization grid at time t has the shape of
// the first one. realizations[i] is the realization index of grids[i].
func CheckShapes(t TimeLabel, realizations []int, grids []Grid) error {
	if len(grids) == 0 {
		return ErrNoRealizations
	}
	first := grids[0]
	for i, g := range grids[1:] {
		if !g.SameShape(first) {
			return &DimensionMismatchError{
				Time:        t,
				Realization: realizations[i+1],
				WantWidth:   first.Width,
				WantHeight:  first.Height,
				GotWidth:    g.Width,
				GotHeight:   g.Height,
			}
		}
	}
	return nil
}

// Mean averages grids cell by cell. NaN values are skipped in the sum but the
// divisor is always len(grids), so a realization with missing data pulls the
// mean toward zero. Grids must share one shape.
func Mean(grids []Grid) Grid {
	out := newLike(grids[0])
	n := float64(len(grids))
	for j := range out.Values {
		var sum float64
		for _, g := range grids {
			if v := g.Values[j]; !math.IsNaN(v) {
				sum += v
			}
		}
		out.Values[j] = sum / n
	}
	return out
}

// Max compares every value against the fixed seed
// math.SmallestNonzeroFloat64, never against the running result, so the last
// realization whose value beats the seed wins. Cells with no such value stay
// NaN. Grids must share one shape.
func Max(grids []Grid) Grid {
	return seeded(grids, func(v float64) bool { return v > maxSeed })
}

// Min is the mirror of Max: the last value below math.MaxFloat64 wins.
func Min(grids []Grid) Grid {
	return seeded(grids, func(v float64) bool { return v < minSeed })
}

func seeded(grids []Grid, beatsSeed func(float64) bool) Grid {
	out := newLike(grids[0])
	for j := range out.Values {
		out.Values[j] = math.NaN()
		for _, g := range grids {
			if v := g.Values[j]; beatsSeed(v) {
				out.Values[j] = v
			}
		}
	}
	return out
}

// CellStats summarizes one cell across realizations for the point inspector.
// Min and Max skip NaN. Mean uses the MEAN overlay formula so the inspector
// and the map agree. All three are NaN when no realization has data.
func CellStats(values []float64) (lo, hi, mean float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	var sum float64
	seen := false
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		seen = true
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if !seen {
		return math.NaN(), math.NaN(), math.NaN()
	}
	return lo, hi, sum / float64(len(values))
}

func newLike(g Grid) Grid {
	return Grid{Width: g.Width, Height: g.Height, Values: make([]float64, len(g.Values))}
}
