package domain

import "github.com/jonboulle/clockwork"

// clock stamps rendered frames so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for render timestamps. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
