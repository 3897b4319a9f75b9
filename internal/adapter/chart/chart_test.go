package chart

import (
	"bytes"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

func point(offset int, values ...float64) domain.SeriesPoint {
	return domain.NewSeriesPoint(offset, domain.TimeLabel("2024-04-26T00").Add(offset), values)
}

func TestRender_ProducesPNG(t *testing.T) {
	s := domain.PointSeries{X: 3, Y: 4, Realizations: []int{1, 2}, Points: []domain.SeriesPoint{
		point(0, 0, 1),
		point(1, 2, 4),
		point(2, math.NaN(), math.NaN()),
		point(3, 1, 3),
	}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s, 400, 200))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestRender_AllGaps(t *testing.T) {
	s := domain.PointSeries{Points: []domain.SeriesPoint{point(0, math.NaN())}}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, s, 0, 0))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultWidth, img.Bounds().Dx())
}

func TestSegments_SplitsOnNaN(t *testing.T) {
	points := []domain.SeriesPoint{
		point(0, 1), point(1, 2), point(2, math.NaN()), point(3, math.NaN()), point(4, 5),
	}
	segs := segments(points, func(p domain.SeriesPoint) float64 { return p.Mean })

	require.Len(t, segs, 2)
	assert.Equal(t, []float64{0, 1}, segs[0].xs)
	assert.Equal(t, []float64{1, 2}, segs[0].ys)
	assert.Equal(t, []float64{4}, segs[1].xs)
}
