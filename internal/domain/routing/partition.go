package routing

import (
	"fmt"
	"sort"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/system"
)

// PartitionFleet splits a market set across ships so that the longest
// single-ship tour (the makespan) is as short as possible. Every market is
// assigned to exactly one ship; ships may end up idle when there are fewer
// markets than ships.
//
// Greedy makespan-aware seeding followed by relocate moves within the
// wall-clock budget. Pair costs reuse PlanPath times, so legs that are
// unreachable without refuelling carry the UnreachableCost sentinel and
// orbital siblings are essentially free.
func PartitionFleet(graph *system.SystemGraph, markets []string, ships map[string]*ShipConfig, budget time.Duration) (*VRPResponse, error) {
	if len(ships) == 0 {
		return nil, fmt.Errorf("partition requires at least one ship")
	}
	for _, market := range markets {
		if _, err := graph.GetWaypoint(market); err != nil {
			return nil, fmt.Errorf("market waypoint: %w", err)
		}
	}

	deadline := time.Now().Add(budget)

	// Deterministic iteration order regardless of map ordering
	shipSymbols := make([]string, 0, len(ships))
	for symbol := range ships {
		shipSymbols = append(shipSymbols, symbol)
	}
	sort.Strings(shipSymbols)

	sortedMarkets := append([]string(nil), markets...)
	sort.Strings(sortedMarkets)

	assignment := make(map[string][]string, len(shipSymbols))
	for _, symbol := range shipSymbols {
		assignment[symbol] = []string{}
	}

	tourTime := func(ship string, tour []string) int {
		cfg := ships[ship]
		return chainTime(graph, cfg.CurrentLocation, tour, cfg.FuelCapacity, cfg.EngineSpeed)
	}

	// Seed: give each market to the ship whose tour grows the least
	for _, market := range sortedMarkets {
		bestShip := ""
		bestTime := 0
		for _, ship := range shipSymbols {
			candidate := tourTime(ship, append(append([]string(nil), assignment[ship]...), market))
			if bestShip == "" || candidate < bestTime {
				bestShip = ship
				bestTime = candidate
			}
		}
		assignment[bestShip] = append(assignment[bestShip], market)
	}

	// With markets to spare, no ship stays idle
	if len(sortedMarkets) >= len(shipSymbols) {
		spreadToIdleShips(assignment, shipSymbols, tourTime)
	}

	// Improvement: relocate markets off the makespan ship while it helps
	for time.Now().Before(deadline) {
		if !relocateOnce(assignment, shipSymbols, tourTime) {
			break
		}
	}

	response := &VRPResponse{Assignments: make(map[string]*ShipTour, len(shipSymbols))}
	for _, ship := range shipSymbols {
		cfg := ships[ship]
		ordered := orderChain(graph, cfg.CurrentLocation, assignment[ship], cfg.FuelCapacity, cfg.EngineSpeed)

		tour := &ShipTour{Waypoints: ordered, Route: []*RouteStep{}}
		if len(ordered) > 0 {
			legs := append([]string{cfg.CurrentLocation}, ordered...)
			tour.Route, tour.TotalTimeSeconds = combineLegs(graph, legs, cfg.FuelCapacity, cfg.EngineSpeed)
		}
		response.Assignments[ship] = tour
	}

	return response, nil
}

// spreadToIdleShips moves the cheapest market from the most-loaded ship to
// each idle one.
func spreadToIdleShips(assignment map[string][]string, shipSymbols []string, tourTime func(string, []string) int) {
	for {
		idle := ""
		for _, ship := range shipSymbols {
			if len(assignment[ship]) == 0 {
				idle = ship
				break
			}
		}
		if idle == "" {
			return
		}

		donor := ""
		for _, ship := range shipSymbols {
			if len(assignment[ship]) < 2 {
				continue
			}
			if donor == "" || len(assignment[ship]) > len(assignment[donor]) {
				donor = ship
			}
		}
		if donor == "" {
			return
		}

		// Move the market the idle ship can reach fastest
		bestIdx := 0
		bestTime := 0
		for i, market := range assignment[donor] {
			candidate := tourTime(idle, []string{market})
			if i == 0 || candidate < bestTime {
				bestIdx = i
				bestTime = candidate
			}
		}

		market := assignment[donor][bestIdx]
		assignment[donor] = append(assignment[donor][:bestIdx], assignment[donor][bestIdx+1:]...)
		assignment[idle] = append(assignment[idle], market)
	}
}

// relocateOnce tries to move one market from the makespan ship to another
// ship so that the makespan strictly decreases. Returns false when no such
// move exists.
func relocateOnce(assignment map[string][]string, shipSymbols []string, tourTime func(string, []string) int) bool {
	worst := ""
	worstTime := -1
	for _, ship := range shipSymbols {
		if t := tourTime(ship, assignment[ship]); t > worstTime {
			worst = ship
			worstTime = t
		}
	}
	if len(assignment[worst]) <= 1 {
		return false
	}

	for i, market := range assignment[worst] {
		remaining := make([]string, 0, len(assignment[worst])-1)
		remaining = append(remaining, assignment[worst][:i]...)
		remaining = append(remaining, assignment[worst][i+1:]...)

		for _, other := range shipSymbols {
			if other == worst {
				continue
			}
			grown := append(append([]string(nil), assignment[other]...), market)
			newMakespan := tourTime(worst, remaining)
			if t := tourTime(other, grown); t > newMakespan {
				newMakespan = t
			}
			if newMakespan < worstTime {
				assignment[worst] = remaining
				assignment[other] = grown
				return true
			}
		}
	}

	return false
}

// orderChain orders a market set by nearest-neighbour from the ship location
func orderChain(graph *system.SystemGraph, from string, markets []string, fuelCapacity, engineSpeed int) []string {
	remaining := append([]string(nil), markets...)
	ordered := make([]string, 0, len(remaining))

	current := from
	for len(remaining) > 0 {
		bestIdx := 0
		bestTime := 0
		for i, market := range remaining {
			t := legTime(graph, current, market, fuelCapacity, engineSpeed)
			if i == 0 || t < bestTime {
				bestIdx = i
				bestTime = t
			}
		}
		current = remaining[bestIdx]
		ordered = append(ordered, current)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return ordered
}

// chainTime is the nearest-neighbour tour time from a start location
func chainTime(graph *system.SystemGraph, from string, markets []string, fuelCapacity, engineSpeed int) int {
	total := 0
	current := from
	for _, market := range orderChain(graph, from, markets, fuelCapacity, engineSpeed) {
		total += legTime(graph, current, market, fuelCapacity, engineSpeed)
		current = market
	}
	return total
}
