// Package arrivals turns raw feed predictions into display-ready countdowns.
package arrivals

import (
	"slices"
	"time"
)

const (
	DefaultTopK  = 2
	DefaultGrace = 30 * time.Second
)

type Direction int

const (
	Uptown Direction = iota
	Downtown
)

func (direction Direction) String() string {
	switch direction {
	case Uptown:
		return "uptown"
	case Downtown:
		return "downtown"
	}
	return "unknown"
}

// Other returns the opposite direction.
func (direction Direction) Other() Direction {
	if direction == Uptown {
		return Downtown
	}
	return Uptown
}

// Prediction is a single decoded feed entry for the configured stop.
type Prediction struct {
	TripID      string
	RouteID     string
	StopID      string
	Direction   Direction
	ArrivalTime time.Time
}

// Snapshot holds countdown minutes for one direction, soonest first.
type Snapshot struct {
	Direction Direction
	Minutes   []int
}

func (snapshot Snapshot) Len() int {
	return len(snapshot.Minutes)
}

func (snapshot Snapshot) Equal(other Snapshot) bool {
	return snapshot.Direction == other.Direction && slices.Equal(snapshot.Minutes, other.Minutes)
}

// Pair is one snapshot per direction, always read and written as a unit.
type Pair struct {
	Uptown   Snapshot
	Downtown Snapshot
}

func EmptyPair() Pair {
	return Pair{
		Uptown:   Snapshot{Direction: Uptown, Minutes: []int{}},
		Downtown: Snapshot{Direction: Downtown, Minutes: []int{}},
	}
}

func (pair Pair) Get(direction Direction) Snapshot {
	if direction == Downtown {
		return pair.Downtown
	}
	return pair.Uptown
}

type Options struct {
	TopK  int
	Grace time.Duration
}

func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, Grace: DefaultGrace}
}

// Countdown returns whole minutes until arrival, clamped to zero for trains
// inside the grace window. ok is false once the arrival is further in the
// past than the grace window.
func Countdown(now, arrival time.Time, grace time.Duration) (minutes int, ok bool) {
	delta := arrival.Sub(now)
	if delta < -grace {
		return 0, false
	}
	if delta <= 0 {
		return 0, true
	}
	return int(delta / time.Minute), true
}

// Build normalizes the predictions for one direction. Entries for other
// directions are ignored.
func Build(now time.Time, direction Direction, predictions []Prediction, options Options) Snapshot {
	minutes := make([]int, 0, len(predictions))
	for _, prediction := range predictions {
		if prediction.Direction != direction {
			continue
		}
		countdown, ok := Countdown(now, prediction.ArrivalTime, options.Grace)
		if !ok {
			continue
		}
		minutes = append(minutes, countdown)
	}

	slices.Sort(minutes)
	if options.TopK > 0 && len(minutes) > options.TopK {
		minutes = minutes[:options.TopK]
	}

	return Snapshot{Direction: direction, Minutes: minutes}
}

// BuildPair groups a mixed prediction list by direction.
func BuildPair(now time.Time, predictions []Prediction, options Options) Pair {
	return Pair{
		Uptown:   Build(now, Uptown, predictions, options),
		Downtown: Build(now, Downtown, predictions, options),
	}
}
