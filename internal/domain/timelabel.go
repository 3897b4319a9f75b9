package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeLabelLayout is the canonical hour-granularity layout.
const TimeLabelLayout = "2006-01-02T15"

// TimeLabel identifies one forecast hour, e.g. "2024-04-26T15" (UTC).
type TimeLabel string

// accepted input layouts, most specific first.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	TimeLabelLayout,
	"2006-01-02",
}

// ParseTimeLabel accepts an ISO-8601 timestamp of any precision down to the
// day and truncates it to the hour in UTC.
func ParseTimeLabel(s string) (TimeLabel, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeLabelOf(t), nil
		}
	}
	return "", fmt.Errorf("invalid time label %q: want ISO-8601 like %s", s, TimeLabelLayout)
}

// TimeLabelOf truncates t to the hour in UTC.
func TimeLabelOf(t time.Time) TimeLabel {
	return TimeLabel(t.UTC().Truncate(time.Hour).Format(TimeLabelLayout))
}

// Time parses the label back into a UTC time.
func (l TimeLabel) Time() (time.Time, error) {
	t, err := time.Parse(TimeLabelLayout, string(l))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time label %q: %w", string(l), err)
	}
	return t, nil
}

// Add returns the label n hours later. An unparseable label is returned as is.
func (l TimeLabel) Add(hours int) TimeLabel {
	t, err := l.Time()
	if err != nil {
		return l
	}
	return TimeLabelOf(t.Add(time.Duration(hours) * time.Hour))
}

func (l TimeLabel) String() string { return string(l) }
