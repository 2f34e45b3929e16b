package navigation

import (
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// NavStatus represents ship navigation status
type NavStatus string

const (
	NavStatusDocked    NavStatus = "DOCKED"
	NavStatusInOrbit   NavStatus = "IN_ORBIT"
	NavStatusInTransit NavStatus = "IN_TRANSIT"
)

var validNavStatuses = map[NavStatus]bool{
	NavStatusDocked:    true,
	NavStatusInOrbit:   true,
	NavStatusInTransit: true,
}

// DefaultFuelSafetyMargin is the fuel reserve (in units) kept back when
// picking flight modes, guarding against rounding drift between the planned
// and actual burn.
const DefaultFuelSafetyMargin = 4

// Ship is a player's spacecraft as the game server last reported it.
//
// Navigation state machine:
//   - DOCKED -> Depart() -> IN_ORBIT
//   - IN_ORBIT -> Dock() -> DOCKED
//   - IN_ORBIT -> BeginTransit() -> IN_TRANSIT
//   - IN_TRANSIT -> Arrive() -> IN_ORBIT
type Ship struct {
	shipSymbol      string
	playerID        int
	currentLocation *shared.Waypoint
	fuel            *shared.Fuel
	engineSpeed     int
	frameSymbol     string
	role            string
	navStatus       NavStatus
	flightMode      string
	arrivalTime     *time.Time
	cooldownExpiry  *time.Time
}

// NewShip creates a Ship with validation
func NewShip(
	shipSymbol string,
	playerID int,
	currentLocation *shared.Waypoint,
	fuel *shared.Fuel,
	engineSpeed int,
	frameSymbol string,
	role string,
	navStatus NavStatus,
	flightMode string,
) (*Ship, error) {
	s := &Ship{
		shipSymbol:      shipSymbol,
		playerID:        playerID,
		currentLocation: currentLocation,
		fuel:            fuel,
		engineSpeed:     engineSpeed,
		frameSymbol:     frameSymbol,
		role:            role,
		navStatus:       navStatus,
		flightMode:      flightMode,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Ship) validate() error {
	if s.shipSymbol == "" {
		return shared.NewValidationError("ship_symbol", "cannot be empty")
	}
	if s.currentLocation == nil {
		return shared.NewValidationError("current_location", "cannot be nil")
	}
	if s.fuel == nil {
		return shared.NewValidationError("fuel", "cannot be nil")
	}
	if s.engineSpeed < 0 {
		return shared.NewValidationError("engine_speed", "cannot be negative")
	}
	if !validNavStatuses[s.navStatus] {
		return shared.NewValidationError("nav_status", fmt.Sprintf("unknown status %q", s.navStatus))
	}
	if s.flightMode == "" {
		s.flightMode = shared.FlightModeCruise.Name()
	}
	return nil
}

func (s *Ship) ShipSymbol() string                 { return s.shipSymbol }
func (s *Ship) PlayerID() int                      { return s.playerID }
func (s *Ship) CurrentLocation() *shared.Waypoint  { return s.currentLocation }
func (s *Ship) Fuel() *shared.Fuel                 { return s.fuel }
func (s *Ship) FuelCapacity() int                  { return s.fuel.Capacity }
func (s *Ship) EngineSpeed() int                   { return s.engineSpeed }
func (s *Ship) FrameSymbol() string                { return s.frameSymbol }
func (s *Ship) Role() string                       { return s.role }
func (s *Ship) NavStatus() NavStatus               { return s.navStatus }
func (s *Ship) FlightMode() string                 { return s.flightMode }
func (s *Ship) ArrivalTime() *time.Time            { return s.arrivalTime }
func (s *Ship) CooldownExpiration() *time.Time     { return s.cooldownExpiry }

// IsDocked reports whether the ship sits at a dock
func (s *Ship) IsDocked() bool { return s.navStatus == NavStatusDocked }

// IsInTransit reports whether the ship is between waypoints
func (s *Ship) IsInTransit() bool { return s.navStatus == NavStatusInTransit }

// HasFuelTank reports whether this frame burns fuel at all. Probes and
// satellites have zero capacity and travel for free.
func (s *Ship) HasFuelTank() bool { return s.fuel.Capacity > 0 }

// Depart moves DOCKED -> IN_ORBIT. Departing while already in orbit is a
// no-op so callers can depart unconditionally before navigating.
func (s *Ship) Depart() error {
	switch s.navStatus {
	case NavStatusInOrbit:
		return nil
	case NavStatusDocked:
		s.navStatus = NavStatusInOrbit
		return nil
	default:
		return fmt.Errorf("%w: cannot depart while %s", shared.ErrInvalidTransition, s.navStatus)
	}
}

// Dock moves IN_ORBIT -> DOCKED. Docking while docked is a no-op.
func (s *Ship) Dock() error {
	switch s.navStatus {
	case NavStatusDocked:
		return nil
	case NavStatusInOrbit:
		s.navStatus = NavStatusDocked
		return nil
	default:
		return fmt.Errorf("%w: cannot dock while %s", shared.ErrInvalidTransition, s.navStatus)
	}
}

// BeginTransit moves IN_ORBIT -> IN_TRANSIT toward a destination, consuming
// fuel up front the way the game server does.
func (s *Ship) BeginTransit(destination *shared.Waypoint, fuelCost int, arrival time.Time) error {
	if s.navStatus != NavStatusInOrbit {
		return fmt.Errorf("%w: cannot navigate while %s", shared.ErrInvalidTransition, s.navStatus)
	}
	if s.HasFuelTank() {
		if s.fuel.Current < fuelCost {
			return shared.NewInsufficientFuelError(fuelCost, s.fuel.Current)
		}
		next, err := s.fuel.Consume(fuelCost)
		if err != nil {
			return err
		}
		s.fuel = next
	}
	s.currentLocation = destination
	s.arrivalTime = &arrival
	s.navStatus = NavStatusInTransit
	return nil
}

// Arrive moves IN_TRANSIT -> IN_ORBIT once the arrival time has passed
func (s *Ship) Arrive() error {
	if s.navStatus != NavStatusInTransit {
		return fmt.Errorf("%w: cannot arrive while %s", shared.ErrInvalidTransition, s.navStatus)
	}
	s.navStatus = NavStatusInOrbit
	s.arrivalTime = nil
	return nil
}

// RemainingTransitTime returns how long until arrival, zero when not in
// transit or already due.
func (s *Ship) RemainingTransitTime(clock shared.Clock) time.Duration {
	if s.navStatus != NavStatusInTransit || s.arrivalTime == nil {
		return 0
	}
	remaining := s.arrivalTime.Sub(clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RemainingCooldown returns how long until the ship's action cooldown
// expires, zero when no cooldown is pending.
func (s *Ship) RemainingCooldown(clock shared.Clock) time.Duration {
	if s.cooldownExpiry == nil {
		return 0
	}
	remaining := s.cooldownExpiry.Sub(clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SetCooldown records when the ship's action cooldown expires
func (s *Ship) SetCooldown(expiry *time.Time) { s.cooldownExpiry = expiry }

// SetArrival is used when rebuilding a ship that the server reports as
// already in transit.
func (s *Ship) SetArrival(arrival *time.Time) { s.arrivalTime = arrival }

// SetFlightMode records the mode the game server confirmed
func (s *Ship) SetFlightMode(mode string) error {
	if _, err := shared.ParseFlightMode(mode); err != nil {
		return err
	}
	s.flightMode = mode
	return nil
}

// Refuel tops the tank up to capacity and returns the units added
func (s *Ship) Refuel() int {
	added := s.fuel.Capacity - s.fuel.Current
	if added == 0 {
		return 0
	}
	next, err := s.fuel.Add(added)
	if err != nil {
		return 0
	}
	s.fuel = next
	return added
}

// SystemSymbol returns the system of the ship's current waypoint
func (s *Ship) SystemSymbol() string {
	return shared.ExtractSystemSymbol(s.currentLocation.Symbol)
}

func (s *Ship) String() string {
	return fmt.Sprintf("Ship[%s @ %s, %s, fuel=%d/%d]",
		s.shipSymbol, s.currentLocation.Symbol, s.navStatus, s.fuel.Current, s.fuel.Capacity)
}
