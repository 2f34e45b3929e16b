package shared

import (
	"fmt"
	"math"
)

// Waypoint is an immutable location in a star system.
type Waypoint struct {
	Symbol       string   `json:"symbol"`
	X            float64  `json:"x"`
	Y            float64  `json:"y"`
	SystemSymbol string   `json:"systemSymbol"`
	Type         string   `json:"type"`
	Traits       []string `json:"traits,omitempty"`
	HasFuel      bool     `json:"has_fuel"`
	Orbitals     []string `json:"orbitals,omitempty"`
}

// NewWaypoint creates a waypoint with validation
func NewWaypoint(symbol string, x, y float64) (*Waypoint, error) {
	if symbol == "" {
		return nil, NewValidationError("symbol", "cannot be empty")
	}

	return &Waypoint{
		Symbol:       symbol,
		X:            x,
		Y:            y,
		SystemSymbol: ExtractSystemSymbol(symbol),
		Traits:       []string{},
		Orbitals:     []string{},
	}, nil
}

// DistanceTo returns the Euclidean distance to another waypoint.
// Orbital neighbours are a special case handled by callers: their
// effective travel distance is zero regardless of coordinates.
func (w *Waypoint) DistanceTo(other *Waypoint) float64 {
	dx := other.X - w.X
	dy := other.Y - w.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// IsOrbitalNeighbor reports whether either waypoint appears in the
// other's orbitals set.
func (w *Waypoint) IsOrbitalNeighbor(other *Waypoint) bool {
	for _, orbital := range w.Orbitals {
		if orbital == other.Symbol {
			return true
		}
	}
	for _, orbital := range other.Orbitals {
		if orbital == w.Symbol {
			return true
		}
	}
	return false
}

// FindNearestWaypoint returns the nearest waypoint from a list and its distance.
// Returns nil and 0 for an empty list.
func FindNearestWaypoint(from *Waypoint, targets []*Waypoint) (*Waypoint, float64) {
	if len(targets) == 0 {
		return nil, 0
	}

	nearest := targets[0]
	minDistance := from.DistanceTo(targets[0])

	for _, target := range targets[1:] {
		if d := from.DistanceTo(target); d < minDistance {
			minDistance = d
			nearest = target
		}
	}

	return nearest, minDistance
}

func (w *Waypoint) String() string {
	return fmt.Sprintf("Waypoint(%s)", w.Symbol)
}

// ExtractSystemSymbol derives the system symbol from a waypoint symbol
// by stripping everything after the last hyphen.
// Example: "X1-AB12-C3D4" -> "X1-AB12"
func ExtractSystemSymbol(waypointSymbol string) string {
	for i := len(waypointSymbol) - 1; i >= 0; i-- {
		if waypointSymbol[i] == '-' {
			return waypointSymbol[:i]
		}
	}
	return waypointSymbol
}
