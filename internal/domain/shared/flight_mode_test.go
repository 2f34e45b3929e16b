package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

func TestFlightMode_FuelCost(t *testing.T) {
	tests := []struct {
		name     string
		mode     shared.FlightMode
		distance float64
		want     int
	}{
		{"cruise standard", shared.FlightModeCruise, 100, 100},
		{"cruise rounds up", shared.FlightModeCruise, 100.3, 101},
		{"burn doubles", shared.FlightModeBurn, 100, 200},
		{"drift minimal", shared.FlightModeDrift, 100, 1},
		{"drift large distance", shared.FlightModeDrift, 1000, 3},
		{"zero distance is free", shared.FlightModeCruise, 0, 0},
		{"short hop costs at least one", shared.FlightModeCruise, 0.5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.FuelCost(tt.distance))
		})
	}
}

func TestFlightMode_TravelTime(t *testing.T) {
	tests := []struct {
		name        string
		mode        shared.FlightMode
		distance    float64
		engineSpeed int
		want        int
	}{
		{"cruise", shared.FlightModeCruise, 100, 30, 103},
		{"burn is faster", shared.FlightModeBurn, 100, 30, 50},
		{"drift", shared.FlightModeDrift, 100, 30, 86},
		{"zero distance takes no time", shared.FlightModeCruise, 0, 30, 0},
		{"minimum one second", shared.FlightModeBurn, 1, 100, 1},
		{"zero speed clamps to one", shared.FlightModeCruise, 10, 0, 310},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.mode.TravelTime(tt.distance, tt.engineSpeed))
		})
	}
}

func TestSelectOptimalFlightMode(t *testing.T) {
	tests := []struct {
		name         string
		currentFuel  int
		fuelCost     int
		safetyMargin int
		want         shared.FlightMode
	}{
		{"plenty of fuel prefers burn", 100, 20, 4, shared.FlightModeBurn},
		{"exact burn threshold uses burn", 44, 20, 4, shared.FlightModeBurn},
		{"enough for cruise only", 30, 20, 4, shared.FlightModeCruise},
		{"exact cruise threshold uses cruise", 24, 20, 4, shared.FlightModeCruise},
		{"too little falls back to drift", 10, 20, 4, shared.FlightModeDrift},
		{"empty tank drifts", 0, 20, 4, shared.FlightModeDrift},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := shared.SelectOptimalFlightMode(tt.currentFuel, tt.fuelCost, tt.safetyMargin)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlightMode(t *testing.T) {
	mode, err := shared.ParseFlightMode("BURN")
	require.NoError(t, err)
	assert.Equal(t, shared.FlightModeBurn, mode)

	_, err = shared.ParseFlightMode("WARP")
	assert.Error(t, err)

	assert.True(t, shared.IsValidFlightModeName("STEALTH"))
	assert.False(t, shared.IsValidFlightModeName("warp"))
}
