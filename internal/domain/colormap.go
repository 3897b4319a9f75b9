package domain

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Color scale domain in millimetres per hour.
const (
	ScaleMin = 0.0
	ScaleMax = 132.0
)

type gradientStop struct {
	color colorful.Color
	alpha float64
}

// precipGradient is evenly spaced over [0, 1]: transparent, yellow, red, black.
var precipGradient = []gradientStop{
	{color: colorful.Color{R: 0, G: 0, B: 0}, alpha: 0},
	{color: colorful.Color{R: 1, G: 1, B: 0}, alpha: 1},
	{color: colorful.Color{R: 1, G: 0, B: 0}, alpha: 1},
	{color: colorful.Color{R: 0, G: 0, B: 0}, alpha: 1},
}

// NoDataColor is painted for NaN cells.
var NoDataColor = color.NRGBA{R: 0xcc, G: 0xcc, B: 0xcc, A: 0xff}

// RenderedImage is an encoded overlay frame. PNG is nil for empty frames.
// The buffer is shared between callers and must not be modified.
type RenderedImage struct {
	Key        RenderKey
	Width      int
	Height     int
	PNG        []byte
	RenderedAt time.Time
}

// Empty reports whether the frame is the "no overlay" image.
func (r RenderedImage) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Normalize maps a precipitation value onto the gradient axis. It does not
// clamp: values outside [ScaleMin, ScaleMax] land outside [0, 1].
func Normalize(v float64) float64 {
	return (v - ScaleMin) / (ScaleMax - ScaleMin)
}

// ColorAt maps a value through the gradient.
func ColorAt(v float64) color.NRGBA {
	t := Normalize(v)
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return NoDataColor
	}

	segments := len(precipGradient) - 1
	pos := t * float64(segments)
	i := int(math.Floor(pos))
	if i < 0 {
		i = 0
	}
	if i > segments-1 {
		i = segments - 1
	}
	local := pos - float64(i)

	from, to := precipGradient[i], precipGradient[i+1]
	c := from.color.BlendLab(to.color, local)
	a := from.alpha + local*(to.alpha-from.alpha)

	return color.NRGBA{R: channel(c.R), G: channel(c.G), B: channel(c.B), A: channel(a)}
}

// channel quantizes a unit-range component to 8 bits. Out-of-range components
// wrap modulo 256 rather than saturating.
func channel(v float64) uint8 {
	q := math.Round(v * 255)
	if math.IsNaN(q) || math.Abs(q) > math.MaxInt32 {
		return 0
	}
	return uint8(int64(q))
}

// Paint draws the grid into an image. Grid row 0 is the bottom image row.
func Paint(g Grid) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, g.Width, g.Height))
	for j := 0; j < g.Height; j++ {
		row := g.Height - j - 1
		for i := 0; i < g.Width; i++ {
			img.SetNRGBA(i, j, ColorAt(g.Values[row*g.Width+i]))
		}
	}
	return img
}

// Colorize paints and PNG-encodes a grid. Empty grids produce an empty frame
// without encoding anything.
func Colorize(key RenderKey, g Grid) (RenderedImage, error) {
	out := RenderedImage{Key: key, RenderedAt: clock.Now()}
	if g.Empty() {
		return out, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Paint(g)); err != nil {
		return RenderedImage{}, fmt.Errorf("encode %s: %w", key, err)
	}
	out.Width = g.Width
	out.Height = g.Height
	out.PNG = buf.Bytes()
	return out, nil
}
