package navigation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/domain/navigation"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

func testShip(t *testing.T, status navigation.NavStatus, current, capacity int) *navigation.Ship {
	t.Helper()
	wp := &shared.Waypoint{Symbol: "X1-TEST-A1", SystemSymbol: "X1-TEST", Type: "PLANET", HasFuel: true}
	fuel, err := shared.NewFuel(current, capacity)
	require.NoError(t, err)

	ship, err := navigation.NewShip("TESTSHIP-1", 1, wp, fuel, 30, "FRAME_FRIGATE", "COMMAND", status, "")
	require.NoError(t, err)
	return ship
}

func TestNewShip_Validation(t *testing.T) {
	wp := &shared.Waypoint{Symbol: "X1-TEST-A1", SystemSymbol: "X1-TEST", Type: "PLANET", HasFuel: true}
	fuel, err := shared.NewFuel(100, 100)
	require.NoError(t, err)

	_, err = navigation.NewShip("", 1, wp, fuel, 30, "FRAME_FRIGATE", "COMMAND", navigation.NavStatusDocked, "")
	assert.True(t, shared.IsValidationError(err))

	_, err = navigation.NewShip("TESTSHIP-1", 1, nil, fuel, 30, "FRAME_FRIGATE", "COMMAND", navigation.NavStatusDocked, "")
	assert.True(t, shared.IsValidationError(err))

	_, err = navigation.NewShip("TESTSHIP-1", 1, wp, fuel, 30, "FRAME_FRIGATE", "COMMAND", "WARPING", "")
	assert.True(t, shared.IsValidationError(err))
}

func TestShip_NavigationStateMachine(t *testing.T) {
	ship := testShip(t, navigation.NavStatusDocked, 100, 100)

	require.NoError(t, ship.Depart())
	assert.Equal(t, navigation.NavStatusInOrbit, ship.NavStatus())

	// Depart from orbit is a no-op
	require.NoError(t, ship.Depart())
	assert.Equal(t, navigation.NavStatusInOrbit, ship.NavStatus())

	dest := &shared.Waypoint{Symbol: "X1-TEST-B2", X: 50, SystemSymbol: "X1-TEST", Type: "MOON"}
	arrival := time.Now().Add(time.Minute)
	require.NoError(t, ship.BeginTransit(dest, 50, arrival))
	assert.Equal(t, navigation.NavStatusInTransit, ship.NavStatus())
	assert.Equal(t, 50, ship.Fuel().Current)
	assert.Equal(t, "X1-TEST-B2", ship.CurrentLocation().Symbol)

	assert.ErrorIs(t, ship.Dock(), shared.ErrInvalidTransition)
	assert.ErrorIs(t, ship.Depart(), shared.ErrInvalidTransition)

	require.NoError(t, ship.Arrive())
	assert.Equal(t, navigation.NavStatusInOrbit, ship.NavStatus())
	assert.Nil(t, ship.ArrivalTime())

	require.NoError(t, ship.Dock())
	assert.Equal(t, navigation.NavStatusDocked, ship.NavStatus())
}

func TestShip_BeginTransitRequiresOrbit(t *testing.T) {
	ship := testShip(t, navigation.NavStatusDocked, 100, 100)
	dest := &shared.Waypoint{Symbol: "X1-TEST-B2", X: 50, SystemSymbol: "X1-TEST", Type: "MOON"}

	err := ship.BeginTransit(dest, 10, time.Now())
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestShip_BeginTransitRejectsInsufficientFuel(t *testing.T) {
	ship := testShip(t, navigation.NavStatusInOrbit, 10, 100)
	dest := &shared.Waypoint{Symbol: "X1-TEST-B2", X: 50, SystemSymbol: "X1-TEST", Type: "MOON"}

	err := ship.BeginTransit(dest, 50, time.Now())
	assert.Error(t, err)
	assert.Equal(t, navigation.NavStatusInOrbit, ship.NavStatus())
	assert.Equal(t, 10, ship.Fuel().Current)
}

func TestShip_ZeroCapacityFrameTravelsFree(t *testing.T) {
	ship := testShip(t, navigation.NavStatusInOrbit, 0, 0)
	dest := &shared.Waypoint{Symbol: "X1-TEST-B2", X: 50, SystemSymbol: "X1-TEST", Type: "MOON"}

	assert.False(t, ship.HasFuelTank())
	require.NoError(t, ship.BeginTransit(dest, 50, time.Now()))
	assert.Equal(t, 0, ship.Fuel().Current)
}

func TestShip_RemainingTransitTime(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	ship := testShip(t, navigation.NavStatusInOrbit, 100, 100)
	dest := &shared.Waypoint{Symbol: "X1-TEST-B2", X: 50, SystemSymbol: "X1-TEST", Type: "MOON"}

	arrival := clock.Now().Add(90 * time.Second)
	require.NoError(t, ship.BeginTransit(dest, 50, arrival))

	assert.Equal(t, 90*time.Second, ship.RemainingTransitTime(clock))

	clock.Advance(2 * time.Minute)
	assert.Equal(t, time.Duration(0), ship.RemainingTransitTime(clock))
}

func TestShip_RefuelTopsUp(t *testing.T) {
	ship := testShip(t, navigation.NavStatusDocked, 40, 100)

	added := ship.Refuel()

	assert.Equal(t, 60, added)
	assert.True(t, ship.Fuel().IsFull())
	assert.Equal(t, 0, ship.Refuel())
}

func TestShip_SetFlightMode(t *testing.T) {
	ship := testShip(t, navigation.NavStatusDocked, 100, 100)

	assert.Equal(t, "CRUISE", ship.FlightMode())
	require.NoError(t, ship.SetFlightMode("DRIFT"))
	assert.Equal(t, "DRIFT", ship.FlightMode())
	assert.Error(t, ship.SetFlightMode("WARP"))
}
