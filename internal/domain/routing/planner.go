package routing

import (
	"container/heap"
	"fmt"

	"github.com/stellarforge/fleetd/internal/domain/shared"
	"github.com/stellarforge/fleetd/internal/domain/system"
)

const (
	// fuelBucketSize quantises fuel for state deduplication
	fuelBucketSize = 10

	// fuelReserve is the margin the mode selector keeps in the tank
	fuelReserve = 4

	// refuelThreshold: a stop tops up whenever fuel is below this share of
	// capacity
	refuelThreshold = 0.9

	// UnreachableCost is the sentinel pair cost for fuel-infeasible legs
	UnreachableCost = 1_000_000
)

// PlanPath finds the minimum-time fuel-feasible path between two waypoints.
//
// Dijkstra over (waypoint, quantised fuel) states ordered by accumulated
// travel time; ties break in insertion order. Successors are a refuel at the
// current waypoint (when it sells fuel and the tank is low or the goal is
// out of DRIFT range) and a travel hop to every other waypoint in the mode
// SelectOptimalFlightMode picks.
//
// DRIFT hops are only considered after a first pass restricted to BURN and
// CRUISE finds no path, so a slow-but-cheap mode never displaces a feasible
// refuel detour.
//
// Returns (nil, nil) when no fuel-feasible path exists.
func PlanPath(graph *system.SystemGraph, start, goal string, currentFuel, fuelCapacity, engineSpeed int) (*RouteResponse, error) {
	if _, err := graph.GetWaypoint(start); err != nil {
		return nil, fmt.Errorf("start waypoint: %w", err)
	}
	if _, err := graph.GetWaypoint(goal); err != nil {
		return nil, fmt.Errorf("goal waypoint: %w", err)
	}

	if start == goal {
		return &RouteResponse{Steps: []*RouteStep{}}, nil
	}

	if route := search(graph, start, goal, currentFuel, fuelCapacity, engineSpeed, false); route != nil {
		return route, nil
	}
	if route := search(graph, start, goal, currentFuel, fuelCapacity, engineSpeed, true); route != nil {
		return route, nil
	}
	return nil, nil
}

// searchNode is one Dijkstra state
type searchNode struct {
	waypoint  string
	fuel      int
	time      int
	fuelSpent int
	distance  float64
	parent    *searchNode
	step      *RouteStep
	seq       int
}

type nodeQueue []*searchNode

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].seq < q[j].seq
}
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(*searchNode)) }
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return node
}

func stateKey(waypoint string, fuel int) string {
	return fmt.Sprintf("%s|%d", waypoint, fuel/fuelBucketSize)
}

func search(graph *system.SystemGraph, start, goal string, currentFuel, fuelCapacity, engineSpeed int, allowDrift bool) *RouteResponse {
	goalWP := graph.Waypoints[goal]

	seq := 0
	queue := &nodeQueue{{waypoint: start, fuel: currentFuel}}
	heap.Init(queue)
	best := map[string]int{stateKey(start, currentFuel): 0}

	for queue.Len() > 0 {
		node := heap.Pop(queue).(*searchNode)

		if node.waypoint == goal {
			return buildRoute(node)
		}

		if bestTime, ok := best[stateKey(node.waypoint, node.fuel)]; ok && node.time > bestTime {
			continue
		}

		here := graph.Waypoints[node.waypoint]

		// Refuel successor
		if here.HasFuel && node.fuel < fuelCapacity && shouldRefuel(graph, here, goalWP, node.fuel, fuelCapacity) {
			seq++
			next := &searchNode{
				waypoint:  node.waypoint,
				fuel:      fuelCapacity,
				time:      node.time,
				fuelSpent: node.fuelSpent,
				distance:  node.distance,
				parent:    node,
				seq:       seq,
				step: &RouteStep{
					Action:   RouteActionRefuel,
					Waypoint: node.waypoint,
					Amount:   fuelCapacity - node.fuel,
				},
			}
			pushIfBetter(queue, best, next)
		}

		// Travel successors
		for symbol, wp := range graph.Waypoints {
			if symbol == node.waypoint {
				continue
			}

			distance := graph.TravelDistance(here, wp)
			mode, fuelCost, travelTime := hopCost(distance, node.fuel, engineSpeed, allowDrift)
			if fuelCost < 0 || node.fuel-fuelCost < 0 {
				continue
			}

			seq++
			next := &searchNode{
				waypoint:  symbol,
				fuel:      node.fuel - fuelCost,
				time:      node.time + travelTime,
				fuelSpent: node.fuelSpent + fuelCost,
				distance:  node.distance + distance,
				parent:    node,
				seq:       seq,
				step: &RouteStep{
					Action:      RouteActionTravel,
					Waypoint:    symbol,
					Distance:    distance,
					FuelCost:    fuelCost,
					TimeSeconds: travelTime,
					Mode:        mode.Name(),
				},
			}
			pushIfBetter(queue, best, next)
		}
	}

	return nil
}

// hopCost picks the flight mode for a hop and returns its costs.
// A negative fuel cost marks the hop infeasible.
func hopCost(distance float64, fuel, engineSpeed int, allowDrift bool) (shared.FlightMode, int, int) {
	// Orbital hop: free fuel, one second, any mode
	if distance == 0 {
		return shared.FlightModeCruise, 0, 1
	}

	cruiseCost := shared.FlightModeCruise.FuelCost(distance)
	mode := shared.SelectOptimalFlightMode(fuel, cruiseCost, fuelReserve)

	// The reserve is soft for CRUISE: spend the whole tank before drifting
	if mode == shared.FlightModeDrift && fuel >= cruiseCost {
		mode = shared.FlightModeCruise
	}

	if mode == shared.FlightModeDrift && !allowDrift {
		return mode, -1, 0
	}

	fuelCost := mode.FuelCost(distance)
	if fuelCost > fuel {
		return mode, -1, 0
	}

	return mode, fuelCost, mode.TravelTime(distance, engineSpeed)
}

// shouldRefuel decides whether a refuel successor is worth emitting: the
// tank is below the top-up threshold, or the goal is beyond even DRIFT range.
func shouldRefuel(graph *system.SystemGraph, here, goal *shared.Waypoint, fuel, capacity int) bool {
	if float64(fuel) < refuelThreshold*float64(capacity) {
		return true
	}
	driftToGoal := shared.FlightModeDrift.FuelCost(graph.TravelDistance(here, goal))
	return fuel < driftToGoal
}

func pushIfBetter(queue *nodeQueue, best map[string]int, node *searchNode) {
	key := stateKey(node.waypoint, node.fuel)
	if bestTime, ok := best[key]; ok && bestTime <= node.time {
		return
	}
	best[key] = node.time
	heap.Push(queue, node)
}

func buildRoute(goal *searchNode) *RouteResponse {
	var steps []*RouteStep
	for node := goal; node.parent != nil; node = node.parent {
		steps = append(steps, node.step)
	}
	// Reverse into travel order
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}

	return &RouteResponse{
		Steps:            steps,
		TotalFuelCost:    goal.fuelSpent,
		TotalTimeSeconds: goal.time,
		TotalDistance:    goal.distance,
	}
}
