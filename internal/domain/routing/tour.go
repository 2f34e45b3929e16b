package routing

import (
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/system"
)

// OptimizeTour orders a closed tour over the target waypoints, starting and
// ending at start. Pair costs are PlanPath travel times with full fuel;
// unreachable pairs cost UnreachableCost so the solver routes around them.
//
// Nearest-neighbour seeds the tour and 2-opt improves it until the
// wall-clock budget expires.
func OptimizeTour(graph *system.SystemGraph, start string, targets []string, fuelCapacity, engineSpeed int, budget time.Duration) (*TourResponse, error) {
	if _, err := graph.GetWaypoint(start); err != nil {
		return nil, fmt.Errorf("tour start: %w", err)
	}

	// Dedupe targets and drop the start itself
	seen := map[string]bool{start: true}
	var unique []string
	for _, symbol := range targets {
		if seen[symbol] {
			continue
		}
		if _, err := graph.GetWaypoint(symbol); err != nil {
			return nil, fmt.Errorf("tour target: %w", err)
		}
		seen[symbol] = true
		unique = append(unique, symbol)
	}

	if len(unique) == 0 {
		return &TourResponse{VisitOrder: []string{start}, CombinedRoute: []*RouteStep{}}, nil
	}

	deadline := time.Now().Add(budget)
	nodes := append([]string{start}, unique...)
	cost := pairwiseCosts(graph, nodes, fuelCapacity, engineSpeed)

	order := nearestNeighborOrder(nodes, cost)
	order = twoOptImprove(order, cost, deadline)

	visitOrder := make([]string, 0, len(order)+1)
	for _, idx := range order {
		visitOrder = append(visitOrder, nodes[idx])
	}
	visitOrder = append(visitOrder, start)

	combined, totalTime := combineLegs(graph, visitOrder, fuelCapacity, engineSpeed)

	return &TourResponse{
		VisitOrder:       visitOrder,
		CombinedRoute:    combined,
		TotalTimeSeconds: totalTime,
	}, nil
}

// pairwiseCosts builds the time matrix over the node list
func pairwiseCosts(graph *system.SystemGraph, nodes []string, fuelCapacity, engineSpeed int) [][]int {
	cost := make([][]int, len(nodes))
	for i := range nodes {
		cost[i] = make([]int, len(nodes))
		for j := range nodes {
			if i == j {
				continue
			}
			cost[i][j] = legTime(graph, nodes[i], nodes[j], fuelCapacity, engineSpeed)
		}
	}
	return cost
}

func legTime(graph *system.SystemGraph, from, to string, fuelCapacity, engineSpeed int) int {
	route, err := PlanPath(graph, from, to, fuelCapacity, fuelCapacity, engineSpeed)
	if err != nil || route == nil {
		return UnreachableCost
	}
	return route.TotalTimeSeconds
}

// nearestNeighborOrder greedily chains nodes starting from index 0
func nearestNeighborOrder(nodes []string, cost [][]int) []int {
	order := []int{0}
	visited := make([]bool, len(nodes))
	visited[0] = true

	current := 0
	for len(order) < len(nodes) {
		next := -1
		bestCost := 0
		for candidate := 1; candidate < len(nodes); candidate++ {
			if visited[candidate] {
				continue
			}
			if next == -1 || cost[current][candidate] < bestCost {
				next = candidate
				bestCost = cost[current][candidate]
			}
		}
		order = append(order, next)
		visited[next] = true
		current = next
	}

	return order
}

// twoOptImprove applies 2-opt moves on the closed tour (index 0 fixed)
// until no move improves or the deadline passes.
func twoOptImprove(order []int, cost [][]int, deadline time.Time) []int {
	n := len(order)
	if n < 4 {
		return order
	}

	improved := true
	for improved && time.Now().Before(deadline) {
		improved = false
		for i := 1; i < n-1; i++ {
			for j := i + 1; j < n; j++ {
				delta := twoOptDelta(order, cost, i, j)
				if delta < 0 {
					reverseSegment(order, i, j)
					improved = true
				}
			}
			if !time.Now().Before(deadline) {
				break
			}
		}
	}

	return order
}

// twoOptDelta computes the closed-tour cost change of reversing order[i..j]
func twoOptDelta(order []int, cost [][]int, i, j int) int {
	n := len(order)
	a, b := order[i-1], order[i]
	c, d := order[j], order[(j+1)%n]

	return cost[a][c] + cost[b][d] - cost[a][b] - cost[c][d]
}

func reverseSegment(order []int, i, j int) {
	for i < j {
		order[i], order[j] = order[j], order[i]
		i++
		j--
	}
}

// combineLegs concatenates the per-leg routes along a visit order
func combineLegs(graph *system.SystemGraph, visitOrder []string, fuelCapacity, engineSpeed int) ([]*RouteStep, int) {
	var combined []*RouteStep
	totalTime := 0

	for i := 0; i+1 < len(visitOrder); i++ {
		route, err := PlanPath(graph, visitOrder[i], visitOrder[i+1], fuelCapacity, fuelCapacity, engineSpeed)
		if err != nil || route == nil {
			continue
		}
		combined = append(combined, route.Steps...)
		totalTime += route.TotalTimeSeconds
	}

	return combined, totalTime
}
