package domain

import (
	"fmt"
	"strings"
)

// VisualizationMode selects how realizations collapse into one grid.
type VisualizationMode int

const (
	ModeMean VisualizationMode = iota
	ModeMax
	ModeMin
	ModeReal1
	ModeNone
)

var modeNames = map[VisualizationMode]string{
	ModeMean:  "mean",
	ModeMax:   "max",
	ModeMin:   "min",
	ModeReal1: "real1",
	ModeNone:  "none",
}

// ParseMode converts a case-insensitive name ("mean", "MAX", "real1", ...)
// into a mode.
func ParseMode(s string) (VisualizationMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, &UnknownModeError{Mode: s}
}

// ParseModes parses a comma-separated list of modes.
func ParseModes(s string) ([]VisualizationMode, error) {
	var out []VisualizationMode
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		m, err := ParseMode(part)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Valid reports whether m is one of the known modes.
func (m VisualizationMode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

func (m VisualizationMode) String() string {
	if n, ok := modeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// RenderKey identifies one rendered overlay frame.
type RenderKey struct {
	Mode VisualizationMode
	Time TimeLabel
}

// String returns the deterministic cache key, e.g. "max-t-2024-04-26T15".
func (k RenderKey) String() string {
	return fmt.Sprintf("%s-t-%s", k.Mode, k.Time)
}
