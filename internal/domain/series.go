package domain

import "math"

// SeriesPoint is one hour of the point inspector.
type SeriesPoint struct {
	Offset int       // hours since Metadata.HourMin
	Time   TimeLabel
	Values []float64 // one per realization, in realization order; NaN = no data
	Min    float64
	Max    float64
	Mean   float64
}

// DayOutlook summarizes the first hour of each forecast day.
type DayOutlook struct {
	Time TimeLabel
	Mean float64
	Wet  bool
}

// PointSeries is the time series of one grid cell across all hours.
type PointSeries struct {
	X, Y         int
	Realizations []int
	Points       []SeriesPoint
}

// NewSeriesPoint collects stats for one hour.
func NewSeriesPoint(offset int, t TimeLabel, values []float64) SeriesPoint {
	lo, hi, mean := CellStats(values)
	return SeriesPoint{Offset: offset, Time: t, Values: values, Min: lo, Max: hi, Mean: mean}
}

// WetThreshold is the daily mean (mm/h) at or above which a day counts as wet.
const WetThreshold = 1.0

// Outlook samples every 24th hour, starting at the first one.
func (s PointSeries) Outlook() []DayOutlook {
	var out []DayOutlook
	for i := 0; i < len(s.Points); i += 24 {
		p := s.Points[i]
		out = append(out, DayOutlook{
			Time: p.Time,
			Mean: p.Mean,
			Wet:  !math.IsNaN(p.Mean) && p.Mean >= WetThreshold,
		})
	}
	return out
}
