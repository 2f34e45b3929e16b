package ship

import (
	"github.com/stellarforge/fleetd/internal/domain/navigation"
)

// DockShipCommand docks an orbiting ship. Docking a docked ship is a no-op.
type DockShipCommand struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
}

type DockShipResponse struct {
	Status string // "docked" or "already_docked"
}

// OrbitShipCommand moves a docked ship into orbit. Orbiting an orbiting
// ship is a no-op.
type OrbitShipCommand struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
}

type OrbitShipResponse struct {
	Status string // "in_orbit" or "already_in_orbit"
}

// RefuelShipCommand buys fuel at the current waypoint. Nil units fills
// the tank. The ship docks first if needed.
type RefuelShipCommand struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
	Units      *int
}

type RefuelShipResponse struct {
	FuelAdded   int
	CreditsCost int
	FuelCurrent int
}

// SetFlightModeCommand changes a ship's flight mode.
type SetFlightModeCommand struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
	Mode       string `validate:"required"`
}

type SetFlightModeResponse struct {
	Mode    string
	Changed bool
}

// NavigateRouteCommand plans a fuel-feasible route to Destination and
// executes it leg by leg, refuelling where the plan says to.
type NavigateRouteCommand struct {
	ShipSymbol  string `validate:"required"`
	Destination string `validate:"required"`
	PlayerID    int    `validate:"required,gt=0"`
}

type NavigateRouteResponse struct {
	Status           string // "completed" or "already_at_destination"
	CurrentLocation  string
	FuelRemaining    int
	StepsExecuted    int
	TotalTimeSeconds int
}

// GetShipQuery fetches one ship fresh from the game API.
type GetShipQuery struct {
	ShipSymbol string `validate:"required"`
	PlayerID   int    `validate:"required,gt=0"`
}

type GetShipResponse struct {
	Ship *navigation.Ship
}

// ListShipsQuery fetches the player's whole fleet.
type ListShipsQuery struct {
	PlayerID int `validate:"required,gt=0"`
}

type ListShipsResponse struct {
	Ships []*navigation.Ship
}
