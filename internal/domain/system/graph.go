package system

import (
	"fmt"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// SystemGraph is a star system's navigation graph: waypoints plus the
// distances between them.
type SystemGraph struct {
	SystemSymbol string
	Waypoints    map[string]*shared.Waypoint
	Edges        []GraphEdge
}

// GraphEdge is a connection between two waypoints
type GraphEdge struct {
	From     string
	To       string
	Distance float64
	Type     EdgeType
}

// EdgeType classifies a connection between waypoints
type EdgeType string

const (
	EdgeTypeOrbital EdgeType = "orbital" // Zero-distance orbital relationship
	EdgeTypeNormal  EdgeType = "normal"  // Standard travel edge
)

// NewSystemGraph creates an empty graph for a system
func NewSystemGraph(systemSymbol string) *SystemGraph {
	return &SystemGraph{
		SystemSymbol: systemSymbol,
		Waypoints:    make(map[string]*shared.Waypoint),
		Edges:        []GraphEdge{},
	}
}

// AddWaypoint adds a waypoint to the graph
func (g *SystemGraph) AddWaypoint(waypoint *shared.Waypoint) {
	g.Waypoints[waypoint.Symbol] = waypoint
}

// AddEdge adds a bidirectional edge between two waypoints
func (g *SystemGraph) AddEdge(from, to string, distance float64, edgeType EdgeType) {
	g.Edges = append(g.Edges,
		GraphEdge{From: from, To: to, Distance: distance, Type: edgeType},
		GraphEdge{From: to, To: from, Distance: distance, Type: edgeType},
	)
}

// GetWaypoint retrieves a waypoint by symbol
func (g *SystemGraph) GetWaypoint(symbol string) (*shared.Waypoint, error) {
	waypoint, exists := g.Waypoints[symbol]
	if !exists {
		return nil, fmt.Errorf("waypoint %s: %w", symbol, shared.ErrNotFound)
	}
	return waypoint, nil
}

// HasWaypoint reports whether a waypoint exists in the graph
func (g *SystemGraph) HasWaypoint(symbol string) bool {
	_, exists := g.Waypoints[symbol]
	return exists
}

// TravelDistance returns the effective travel distance between two
// waypoints: 0 for orbital neighbours, Euclidean otherwise.
func (g *SystemGraph) TravelDistance(from, to *shared.Waypoint) float64 {
	if from.Symbol == to.Symbol {
		return 0
	}
	if from.IsOrbitalNeighbor(to) {
		return 0
	}
	return from.DistanceTo(to)
}

// FuelStations returns all waypoints where fuel is available
func (g *SystemGraph) FuelStations() []*shared.Waypoint {
	var stations []*shared.Waypoint
	for _, waypoint := range g.Waypoints {
		if waypoint.HasFuel {
			stations = append(stations, waypoint)
		}
	}
	return stations
}

// WaypointCount returns the number of waypoints in the graph
func (g *SystemGraph) WaypointCount() int {
	return len(g.Waypoints)
}

// EdgeCount returns the number of edges in the graph
func (g *SystemGraph) EdgeCount() int {
	return len(g.Edges)
}

// BuildEdges derives the edge list from the waypoint set: orbital edges at
// distance 0 for orbital neighbours, Euclidean edges for every other pair.
// Existing edges are replaced.
func (g *SystemGraph) BuildEdges() {
	g.Edges = g.Edges[:0]

	symbols := make([]string, 0, len(g.Waypoints))
	for symbol := range g.Waypoints {
		symbols = append(symbols, symbol)
	}

	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			from := g.Waypoints[symbols[i]]
			to := g.Waypoints[symbols[j]]
			if from.IsOrbitalNeighbor(to) {
				g.AddEdge(from.Symbol, to.Symbol, 0, EdgeTypeOrbital)
			} else {
				g.AddEdge(from.Symbol, to.Symbol, from.DistanceTo(to), EdgeTypeNormal)
			}
		}
	}
}
