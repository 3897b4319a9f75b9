package httpadapter

import (
	"math"
	"strconv"

	"github.com/couchcryptid/precip-render-service/internal/domain"
)

// jsonFloat encodes NaN and infinities as null.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func jsonFloats(values []float64) []jsonFloat {
	out := make([]jsonFloat, len(values))
	for i, v := range values {
		out[i] = jsonFloat(v)
	}
	return out
}

type metadataResponse struct {
	RealizationMin int              `json:"real_min"`
	RealizationMax int              `json:"real_max"`
	HourMin        domain.TimeLabel `json:"hour_min"`
	HourMax        domain.TimeLabel `json:"hour_max"`
	Realizations   []int            `json:"realizations"`
	HourCount      int              `json:"hour_count"`
}

func newMetadataResponse(m domain.Metadata) metadataResponse {
	realizations := m.Realizations()
	if realizations == nil {
		realizations = []int{}
	}
	return metadataResponse{
		RealizationMin: m.RealizationMin,
		RealizationMax: m.RealizationMax,
		HourMin:        m.HourMin,
		HourMax:        m.HourMax,
		Realizations:   realizations,
		HourCount:      m.HourCount(),
	}
}

type gridResponse struct {
	Time        domain.TimeLabel `json:"time"`
	Realization *int             `json:"realization,omitempty"`
	Mode        string           `json:"mode,omitempty"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
	Values      []jsonFloat      `json:"values"`
}

func newGridResponse(t domain.TimeLabel, g domain.Grid) gridResponse {
	return gridResponse{Time: t, Width: g.Width, Height: g.Height, Values: jsonFloats(g.Values)}
}

type seriesPointResponse struct {
	Offset int              `json:"offset"`
	Time   domain.TimeLabel `json:"time"`
	Values []jsonFloat      `json:"values"`
	Min    jsonFloat        `json:"min"`
	Max    jsonFloat        `json:"max"`
	Mean   jsonFloat        `json:"mean"`
}

type outlookResponse struct {
	Time domain.TimeLabel `json:"time"`
	Mean jsonFloat        `json:"mean"`
	Wet  bool             `json:"wet"`
}

type seriesResponse struct {
	X            int                   `json:"x"`
	Y            int                   `json:"y"`
	Realizations []int                 `json:"realizations"`
	Points       []seriesPointResponse `json:"points"`
	Outlook      []outlookResponse     `json:"outlook"`
}

func newSeriesResponse(s domain.PointSeries) seriesResponse {
	out := seriesResponse{
		X:            s.X,
		Y:            s.Y,
		Realizations: s.Realizations,
		Points:       make([]seriesPointResponse, len(s.Points)),
		Outlook:      []outlookResponse{},
	}
	if out.Realizations == nil {
		out.Realizations = []int{}
	}
	for i, p := range s.Points {
		out.Points[i] = seriesPointResponse{
			Offset: p.Offset,
			Time:   p.Time,
			Values: jsonFloats(p.Values),
			Min:    jsonFloat(p.Min),
			Max:    jsonFloat(p.Max),
			Mean:   jsonFloat(p.Mean),
		}
	}
	for _, d := range s.Outlook() {
		out.Outlook = append(out.Outlook, outlookResponse{Time: d.Time, Mean: jsonFloat(d.Mean), Wet: d.Wet})
	}
	return out
}
