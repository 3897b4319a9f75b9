// Package chart draws point time series as PNG line charts.
package chart

import (
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// Default and maximum output sizes in pixels.
const (
	DefaultWidth  = 900
	DefaultHeight = 320
	MinSize       = 100
	MaxSize       = 2000
)

var (
	colorMin  = drawing.ColorFromHex("1f77b4")
	colorMean = drawing.ColorFromHex("2ca02c")
	colorMax  = drawing.ColorFromHex("d62728")
)

type line struct {
	name  string
	color drawing.Color
	value func(domain.SeriesPoint) float64
}

var lines = []line{
	{name: "max", color: colorMax, value: func(p domain.SeriesPoint) float64 { return p.Max }},
	{name: "mean", color: colorMean, value: func(p domain.SeriesPoint) float64 { return p.Mean }},
	{name: "min", color: colorMin, value: func(p domain.SeriesPoint) float64 { return p.Min }},
}

// Render writes s as a PNG chart of the per-hour min, mean, and max.
// NaN hours break the lines instead of dropping to zero.
func Render(w io.Writer, s domain.PointSeries, width, height int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var series []chart.Series
	yMax := 0.0
	for _, l := range lines {
		for i, seg := range segments(s.Points, l.value) {
			name := l.name
			if i > 0 {
				name = ""
			}
			series = append(series, chart.ContinuousSeries{
				Name:    name,
				XValues: seg.xs,
				YValues: seg.ys,
				Style:   lineStyle(l.color),
			})
			for _, y := range seg.ys {
				yMax = math.Max(yMax, y)
			}
		}
	}

	xMax := float64(len(s.Points) - 1)
	if xMax < 1 {
		xMax = 1
	}
	if len(series) == 0 {
		// go-chart refuses to render without a series.
		series = append(series, chart.ContinuousSeries{
			XValues: []float64{0, xMax},
			YValues: []float64{0, 0},
			Style:   chart.Style{StrokeColor: drawing.ColorTransparent},
		})
	}
	if yMax <= 0 {
		yMax = 1
	}

	xName := "hours"
	if len(s.Points) > 0 {
		xName = fmt.Sprintf("hours since %s", s.Points[0].Time)
	}

	ch := chart.Chart{
		Title:      fmt.Sprintf("Precipitation at (%d, %d)", s.X, s.Y),
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: xName, Range: &chart.ContinuousRange{Min: 0, Max: xMax}},
		YAxis:      chart.YAxis{Name: "mm/h", Range: &chart.ContinuousRange{Min: 0, Max: yMax * 1.1}},
		Series:     series,
	}
	// Gap segments share a line; only the first segment of each gets a legend entry.
	legend := ch
	legend.Series = nil
	for _, se := range series {
		if se.GetName() != "" {
			legend.Series = append(legend.Series, se)
		}
	}
	ch.Elements = []chart.Renderable{chart.Legend(&legend)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

func lineStyle(c drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: c,
		StrokeWidth: 2,
		DotColor:    c,
		DotWidth:    2,
	}
}

type segment struct {
	xs, ys []float64
}

// segments splits the points into runs of finite values.
func segments(points []domain.SeriesPoint, value func(domain.SeriesPoint) float64) []segment {
	var out []segment
	var cur segment
	for _, p := range points {
		v := value(p)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if len(cur.xs) > 0 {
				out = append(out, cur)
				cur = segment{}
			}
			continue
		}
		cur.xs = append(cur.xs, float64(p.Offset))
		cur.ys = append(cur.ys, v)
	}
	if len(cur.xs) > 0 {
		out = append(out, cur)
	}
	return out
}
