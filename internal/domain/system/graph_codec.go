package system

import (
	"fmt"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// ToCacheFormat converts the graph into the JSON-friendly map form that the
// system-graph cache persists.
func (g *SystemGraph) ToCacheFormat() map[string]interface{} {
	waypoints := make(map[string]interface{}, len(g.Waypoints))
	for symbol, wp := range g.Waypoints {
		waypoints[symbol] = map[string]interface{}{
			"type":         wp.Type,
			"x":            wp.X,
			"y":            wp.Y,
			"systemSymbol": wp.SystemSymbol,
			"traits":       wp.Traits,
			"orbitals":     wp.Orbitals,
			"has_fuel":     wp.HasFuel,
		}
	}

	edges := make([]interface{}, len(g.Edges))
	for i, edge := range g.Edges {
		edges[i] = map[string]interface{}{
			"from":     edge.From,
			"to":       edge.To,
			"distance": edge.Distance,
			"type":     string(edge.Type),
		}
	}

	return map[string]interface{}{
		"system":    g.SystemSymbol,
		"waypoints": waypoints,
		"edges":     edges,
	}
}

// FromCacheFormat reconstructs a graph from its persisted map form.
func FromCacheFormat(data map[string]interface{}) (*SystemGraph, error) {
	systemSymbol, ok := data["system"].(string)
	if !ok {
		return nil, fmt.Errorf("graph cache: missing system symbol")
	}

	graph := NewSystemGraph(systemSymbol)

	waypointsRaw, ok := data["waypoints"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("graph cache: missing waypoints")
	}
	for symbol, raw := range waypointsRaw {
		wpMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("graph cache: waypoint %s is not an object", symbol)
		}
		graph.AddWaypoint(waypointFromCache(symbol, wpMap))
	}

	// Edges are stored in both directions; re-add only one of each pair
	if edgesRaw, ok := data["edges"].([]interface{}); ok {
		seen := make(map[string]bool)
		for _, edgeRaw := range edgesRaw {
			edgeMap, ok := edgeRaw.(map[string]interface{})
			if !ok {
				continue
			}
			from, _ := edgeMap["from"].(string)
			to, _ := edgeMap["to"].(string)
			distance, _ := edgeMap["distance"].(float64)
			edgeType, _ := edgeMap["type"].(string)

			if seen[to+"|"+from] || seen[from+"|"+to] {
				continue
			}
			seen[from+"|"+to] = true
			graph.AddEdge(from, to, distance, EdgeType(edgeType))
		}
	}

	return graph, nil
}

func waypointFromCache(symbol string, data map[string]interface{}) *shared.Waypoint {
	wp := &shared.Waypoint{
		Symbol:       symbol,
		SystemSymbol: shared.ExtractSystemSymbol(symbol),
		Traits:       []string{},
		Orbitals:     []string{},
	}

	if x, ok := data["x"].(float64); ok {
		wp.X = x
	}
	if y, ok := data["y"].(float64); ok {
		wp.Y = y
	}
	if wpType, ok := data["type"].(string); ok {
		wp.Type = wpType
	}
	if system, ok := data["systemSymbol"].(string); ok {
		wp.SystemSymbol = system
	}
	if hasFuel, ok := data["has_fuel"].(bool); ok {
		wp.HasFuel = hasFuel
	}
	wp.Traits = stringSlice(data["traits"])
	wp.Orbitals = stringSlice(data["orbitals"])

	return wp
}

// stringSlice tolerates both []string (fresh graphs) and []interface{}
// (JSON round-trips).
func stringSlice(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}
