package arrivals

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, time.March, 4, 8, 30, 0, 0, time.UTC)

func prediction(direction Direction, offset time.Duration) Prediction {
	return Prediction{
		TripID:      "R..N",
		RouteID:     "R",
		StopID:      "414",
		Direction:   direction,
		ArrivalTime: epoch.Add(offset),
	}
}

func TestBuildPair_StopScenario(t *testing.T) {
	predictions := []Prediction{
		prediction(Uptown, 11*time.Minute),
		prediction(Downtown, 7*time.Minute),
		prediction(Uptown, 3*time.Minute),
	}

	pair := BuildPair(epoch, predictions, DefaultOptions())

	assert.Equal(t, []int{3, 11}, pair.Uptown.Minutes)
	assert.Equal(t, []int{7}, pair.Downtown.Minutes)
	assert.Equal(t, Uptown, pair.Uptown.Direction)
	assert.Equal(t, Downtown, pair.Downtown.Direction)
}

func TestBuild_TruncatesToTopK(t *testing.T) {
	predictions := []Prediction{
		prediction(Uptown, 9*time.Minute),
		prediction(Uptown, 2*time.Minute),
		prediction(Uptown, 14*time.Minute),
		prediction(Uptown, 5*time.Minute),
	}

	snapshot := Build(epoch, Uptown, predictions, Options{TopK: 3, Grace: DefaultGrace})

	assert.Equal(t, []int{2, 5, 9}, snapshot.Minutes)
}

func TestBuild_GraceWindow(t *testing.T) {
	predictions := []Prediction{
		prediction(Downtown, -10*time.Second),
		prediction(Downtown, -45*time.Second),
		prediction(Downtown, 0),
		prediction(Downtown, 59*time.Second),
	}

	snapshot := Build(epoch, Downtown, predictions, Options{TopK: 5, Grace: 30 * time.Second})

	assert.Equal(t, []int{0, 0, 0}, snapshot.Minutes)
}

func TestBuild_ZeroGraceDropsPast(t *testing.T) {
	predictions := []Prediction{
		prediction(Uptown, -time.Second),
		prediction(Uptown, 0),
	}

	snapshot := Build(epoch, Uptown, predictions, Options{TopK: 2})

	assert.Equal(t, []int{0}, snapshot.Minutes)
}

func TestBuild_EmptyInput(t *testing.T) {
	snapshot := Build(epoch, Uptown, nil, DefaultOptions())

	require.NotNil(t, snapshot.Minutes)
	assert.Zero(t, snapshot.Len())
}

func TestCountdown(t *testing.T) {
	cases := []struct {
		name    string
		offset  time.Duration
		minutes int
		ok      bool
	}{
		{"future whole minutes", 3 * time.Minute, 3, true},
		{"truncates partial minute", 3*time.Minute + 59*time.Second, 3, true},
		{"under a minute", 20 * time.Second, 0, true},
		{"exactly due", 0, 0, true},
		{"inside grace", -30 * time.Second, 0, true},
		{"past grace", -31 * time.Second, 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			minutes, ok := Countdown(epoch, epoch.Add(tc.offset), 30*time.Second)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.minutes, minutes)
		})
	}
}

func randomPredictions(rng *rand.Rand, n int) []Prediction {
	predictions := make([]Prediction, 0, n)
	for i := 0; i < n; i++ {
		direction := Uptown
		if rng.Intn(2) == 1 {
			direction = Downtown
		}
		offset := time.Duration(rng.Intn(40*60)-10*60) * time.Second
		predictions = append(predictions, prediction(direction, offset))
	}
	return predictions
}

func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(414))
	options := Options{TopK: 2, Grace: 30 * time.Second}

	for round := 0; round < 500; round++ {
		predictions := randomPredictions(rng, rng.Intn(12))

		for _, direction := range []Direction{Uptown, Downtown} {
			snapshot := Build(epoch, direction, predictions, options)

			assert.LessOrEqual(t, snapshot.Len(), options.TopK)
			assert.IsNonDecreasing(t, snapshot.Minutes)
			for _, minutes := range snapshot.Minutes {
				assert.GreaterOrEqual(t, minutes, 0)
			}

			eligible := 0
			for _, p := range predictions {
				if p.Direction != direction {
					continue
				}
				if !p.ArrivalTime.Before(epoch.Add(-options.Grace)) {
					eligible++
				}
			}
			assert.Equal(t, min(eligible, options.TopK), snapshot.Len())
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(25))
	predictions := randomPredictions(rng, 10)

	first := BuildPair(epoch, predictions, DefaultOptions())
	second := BuildPair(epoch, predictions, DefaultOptions())

	assert.True(t, first.Uptown.Equal(second.Uptown))
	assert.True(t, first.Downtown.Equal(second.Downtown))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, Downtown, Uptown.Other())
	assert.Equal(t, Uptown, Downtown.Other())
	assert.Equal(t, "uptown", Uptown.String())
	assert.Equal(t, "downtown", Downtown.String())
}
