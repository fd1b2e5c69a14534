package scheduler

import (
	"time"

	"tarediiran-industries.com/transit-board/internal/arrivals"
)

// FrameState tracks which direction is on screen and since when.
type FrameState struct {
	Current arrivals.Direction
	Since   time.Time
}

// NewFrameState starts on the uptown frame.
func NewFrameState(start time.Time) FrameState {
	return FrameState{Current: arrivals.Uptown, Since: start}
}

// Advance switches to the other direction once dwell has fully elapsed and
// reports whether it did.
func (state *FrameState) Advance(now time.Time, dwell time.Duration) bool {
	if now.Sub(state.Since) < dwell {
		return false
	}
	state.Current = state.Current.Other()
	state.Since = now
	return true
}
