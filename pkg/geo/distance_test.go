package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMiles(t *testing.T) {
	// JFK to LAX is roughly 2475 miles.
	d := HaversineMiles(40.6413, -73.7781, 33.9416, -118.4085)
	assert.InDelta(t, 2475, d, 10)

	assert.Zero(t, HaversineMiles(1, 1, 1, 1))
	assert.Equal(t, HaversineMiles(10, 20, 30, 40), HaversineMiles(30, 40, 10, 20))
}

func TestEstimateDurationMinutes(t *testing.T) {
	assert.Equal(t, 0, EstimateDurationMinutes(0))
	assert.Equal(t, 0, EstimateDurationMinutes(-3))
	assert.Equal(t, 1, EstimateDurationMinutes(0.1))
	assert.Equal(t, 24, EstimateDurationMinutes(10))
}
