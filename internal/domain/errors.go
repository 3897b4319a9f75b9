package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRealizationOutOfRange is returned for realization indices outside the metadata range.
	ErrRealizationOutOfRange = errors.New("realization out of range")

	// ErrTimeOutOfRange is returned for time labels outside the metadata range.
	ErrTimeOutOfRange = errors.New("time out of range")

	// ErrNoRealizations is returned when the metadata describes an empty realization range.
	ErrNoRealizations = errors.New("no realizations available")
)

// FetchError reports a transport failure reaching the data source.
type FetchError struct {
	Object string
	Status int // HTTP-like status when the source reported one, 0 otherwise
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Object, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Object, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotFound reports whether the source said the object does not exist.
func (e *FetchError) NotFound() bool { return e.Status == 404 }

// FormatError reports retrieved bytes that are not a usable grid or metadata document.
type FormatError struct {
	Object string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format %s: %s: %v", e.Object, e.Reason, e.Err)
	}
	return fmt.Sprintf("format %s: %s", e.Object, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// DimensionMismatchError reports realizations at one hour that disagree on grid size.
type DimensionMismatchError struct {
	Time        TimeLabel
	Realization int
	WantWidth   int
	WantHeight  int
	GotWidth    int
	GotHeight   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch at %s: realization %d is %dx%d, expected %dx%d",
		e.Time, e.Realization, e.GotWidth, e.GotHeight, e.WantWidth, e.WantHeight)
}

// UnknownModeError reports an unrecognized visualization mode.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown visualization mode %q", e.Mode)
}

// ErrPointOutOfRange is returned for inspector coordinates outside the grid.
var ErrPointOutOfRange = errors.New("point out of range")
