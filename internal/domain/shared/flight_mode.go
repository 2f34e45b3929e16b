package shared

import (
	"fmt"
	"math"
)

// FlightMode determines the time and fuel cost of traversing a distance.
type FlightMode int

const (
	FlightModeCruise FlightMode = iota
	FlightModeDrift
	FlightModeBurn
	FlightModeStealth
)

type flightModeConfig struct {
	Name           string
	TimeMultiplier int
	FuelRate       float64
}

var flightModeConfigs = map[FlightMode]flightModeConfig{
	FlightModeCruise:  {"CRUISE", 31, 1.0},  // Fast, standard fuel
	FlightModeDrift:   {"DRIFT", 26, 0.003}, // Slow, minimal fuel
	FlightModeBurn:    {"BURN", 15, 2.0},    // Very fast, high fuel
	FlightModeStealth: {"STEALTH", 50, 1.0}, // Very slow, stealthy
}

// Name returns the mode name
func (f FlightMode) Name() string {
	if config, ok := flightModeConfigs[f]; ok {
		return config.Name
	}
	return "UNKNOWN"
}

// FuelCost calculates the fuel cost for a given distance.
// Zero distance costs nothing; any positive distance costs at least 1.
func (f FlightMode) FuelCost(distance float64) int {
	if distance == 0 {
		return 0
	}
	config := flightModeConfigs[f]
	cost := distance * config.FuelRate
	if cost < 1 {
		return 1
	}
	return int(math.Ceil(cost))
}

// TravelTime calculates travel time in seconds.
// Zero distance takes no time; any positive distance takes at least 1s.
func (f FlightMode) TravelTime(distance float64, engineSpeed int) int {
	if distance == 0 {
		return 0
	}
	config := flightModeConfigs[f]
	if engineSpeed < 1 {
		engineSpeed = 1
	}
	t := (distance * float64(config.TimeMultiplier)) / float64(engineSpeed)
	if t < 1 {
		return 1
	}
	return int(t)
}

// SelectOptimalFlightMode picks the fastest mode whose fuel cost leaves
// at least safetyMargin fuel in reserve. Priority: BURN > CRUISE > DRIFT.
// STEALTH is never selected automatically.
//
// fuelCost is the CRUISE-baseline cost; BURN is derived by fuel-rate ratio.
// Exact match against a mode's threshold counts as affordable unless the
// safety margin itself exceeds the mode cost.
func SelectOptimalFlightMode(currentFuel, fuelCost, safetyMargin int) FlightMode {
	burnCost := int(float64(fuelCost) *
		flightModeConfigs[FlightModeBurn].FuelRate /
		flightModeConfigs[FlightModeCruise].FuelRate)

	if currentFuel > burnCost+safetyMargin ||
		(currentFuel == burnCost+safetyMargin && safetyMargin < burnCost) {
		return FlightModeBurn
	}

	if currentFuel > fuelCost+safetyMargin ||
		(currentFuel == fuelCost+safetyMargin && safetyMargin < fuelCost) {
		return FlightModeCruise
	}

	return FlightModeDrift
}

func (f FlightMode) String() string {
	return f.Name()
}

// IsValidFlightModeName checks whether a mode name string is recognised
func IsValidFlightModeName(modeName string) bool {
	for _, config := range flightModeConfigs {
		if config.Name == modeName {
			return true
		}
	}
	return false
}

// ParseFlightMode parses a flight mode name into a FlightMode
func ParseFlightMode(modeName string) (FlightMode, error) {
	for mode, config := range flightModeConfigs {
		if config.Name == modeName {
			return mode, nil
		}
	}
	return FlightModeCruise, fmt.Errorf("invalid flight mode: %s", modeName)
}
