package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stellarforge/fleetd/internal/application/common"
	"github.com/stellarforge/fleetd/internal/domain/navigation"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// shipListCacheTTL keeps ListShips results around briefly so workloads that
// enumerate the fleet back to back do not burn the rate budget.
const shipListCacheTTL = 15 * time.Second

type cachedShipList struct {
	ships     []*navigation.Ship
	fetchedAt time.Time
}

// ShipRepository reads ship state from the game API, the source of truth,
// and reconstructs domain entities with their waypoint looked up from the
// system graph.
type ShipRepository struct {
	apiClient     common.APIClient
	playerRepo    common.PlayerRepository
	graphProvider common.SystemGraphProvider
	clock         shared.Clock
	shipListCache sync.Map // playerID (int) -> *cachedShipList
}

var _ common.ShipRepository = (*ShipRepository)(nil)

func NewShipRepository(
	apiClient common.APIClient,
	playerRepo common.PlayerRepository,
	graphProvider common.SystemGraphProvider,
	clock shared.Clock,
) *ShipRepository {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return &ShipRepository{
		apiClient:     apiClient,
		playerRepo:    playerRepo,
		graphProvider: graphProvider,
		clock:         clock,
	}
}

// FindBySymbol retrieves a ship by symbol, waypoint reconstructed from the
// cached system graph.
func (r *ShipRepository) FindBySymbol(ctx context.Context, symbol string, playerID int) (*navigation.Ship, error) {
	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	shipData, err := r.apiClient.GetShip(ctx, symbol, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to get ship from API: %w", err)
	}

	return r.toDomain(ctx, shipData, playerID)
}

// FindAllByPlayer retrieves all of a player's ships. Results are cached for
// a few seconds because fleet-wide workloads enumerate ships repeatedly.
func (r *ShipRepository) FindAllByPlayer(ctx context.Context, playerID int) ([]*navigation.Ship, error) {
	if cached, ok := r.shipListCache.Load(playerID); ok {
		entry := cached.(*cachedShipList)
		if r.clock.Now().Sub(entry.fetchedAt) < shipListCacheTTL {
			return entry.ships, nil
		}
	}

	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	shipDataList, err := r.apiClient.ListShips(ctx, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to list ships from API: %w", err)
	}

	ships := make([]*navigation.Ship, 0, len(shipDataList))
	for _, data := range shipDataList {
		ship, err := r.toDomain(ctx, data, playerID)
		if err != nil {
			return nil, fmt.Errorf("failed to convert ship %s: %w", data.Symbol, err)
		}
		ships = append(ships, ship)
	}

	r.shipListCache.Store(playerID, &cachedShipList{ships: ships, fetchedAt: r.clock.Now()})
	return ships, nil
}

// Navigate orders the ship toward destination and returns the server's
// verdict on arrival time and fuel spend.
func (r *ShipRepository) Navigate(ctx context.Context, ship *navigation.Ship, destination *shared.Waypoint, playerID int) (*common.NavigationResult, error) {
	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}

	result, err := r.apiClient.NavigateShip(ctx, ship.ShipSymbol(), destination.Symbol, player.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to navigate ship: %w", err)
	}
	r.invalidateCache(playerID)
	return result, nil
}

func (r *ShipRepository) Dock(ctx context.Context, ship *navigation.Ship, playerID int) error {
	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to find player: %w", err)
	}
	if err := r.apiClient.DockShip(ctx, ship.ShipSymbol(), player.Token); err != nil {
		return fmt.Errorf("failed to dock ship: %w", err)
	}
	r.invalidateCache(playerID)
	return nil
}

func (r *ShipRepository) Orbit(ctx context.Context, ship *navigation.Ship, playerID int) error {
	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to find player: %w", err)
	}
	if err := r.apiClient.OrbitShip(ctx, ship.ShipSymbol(), player.Token); err != nil {
		return fmt.Errorf("failed to orbit ship: %w", err)
	}
	r.invalidateCache(playerID)
	return nil
}

func (r *ShipRepository) Refuel(ctx context.Context, ship *navigation.Ship, playerID int, units *int) (*common.RefuelResult, error) {
	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find player: %w", err)
	}
	result, err := r.apiClient.RefuelShip(ctx, ship.ShipSymbol(), player.Token, units)
	if err != nil {
		return nil, fmt.Errorf("failed to refuel ship: %w", err)
	}
	r.invalidateCache(playerID)
	return result, nil
}

func (r *ShipRepository) SetFlightMode(ctx context.Context, ship *navigation.Ship, playerID int, mode string) error {
	if _, err := shared.ParseFlightMode(mode); err != nil {
		return err
	}
	player, err := r.playerRepo.FindByID(ctx, playerID)
	if err != nil {
		return fmt.Errorf("failed to find player: %w", err)
	}
	if err := r.apiClient.SetFlightMode(ctx, ship.ShipSymbol(), mode, player.Token); err != nil {
		return fmt.Errorf("failed to set flight mode: %w", err)
	}
	r.invalidateCache(playerID)
	return nil
}

func (r *ShipRepository) invalidateCache(playerID int) {
	r.shipListCache.Delete(playerID)
}

// toDomain converts API ship data to the domain entity. The waypoint comes
// from the system graph when present; a bare coordinate-less waypoint is
// synthesized otherwise so a ship parked at an uncharted waypoint still loads.
func (r *ShipRepository) toDomain(ctx context.Context, data *common.ShipData, playerID int) (*navigation.Ship, error) {
	location, err := r.resolveWaypoint(ctx, data.Location, playerID)
	if err != nil {
		return nil, err
	}

	fuel, err := shared.NewFuel(data.FuelCurrent, data.FuelCapacity)
	if err != nil {
		return nil, fmt.Errorf("invalid fuel state for %s: %w", data.Symbol, err)
	}

	ship, err := navigation.NewShip(
		data.Symbol,
		playerID,
		location,
		fuel,
		data.EngineSpeed,
		data.FrameSymbol,
		data.Role,
		navigation.NavStatus(data.NavStatus),
		data.FlightMode,
	)
	if err != nil {
		return nil, err
	}

	ship.SetArrival(data.ArrivalTime)
	ship.SetCooldown(data.CooldownExpiry)
	return ship, nil
}

func (r *ShipRepository) resolveWaypoint(ctx context.Context, waypointSymbol string, playerID int) (*shared.Waypoint, error) {
	systemSymbol := SystemSymbolFromWaypoint(waypointSymbol)

	if r.graphProvider != nil {
		loaded, err := r.graphProvider.GetGraph(ctx, systemSymbol, playerID, false)
		if err == nil && loaded.Graph != nil {
			if waypoint, err := loaded.Graph.GetWaypoint(waypointSymbol); err == nil {
				return waypoint, nil
			}
		}
	}

	waypoint, err := shared.NewWaypoint(waypointSymbol, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("invalid waypoint symbol %q: %w", waypointSymbol, err)
	}
	waypoint.SystemSymbol = systemSymbol
	return waypoint, nil
}

// SystemSymbolFromWaypoint derives "X1-ABC" from "X1-ABC-XYZ".
func SystemSymbolFromWaypoint(waypointSymbol string) string {
	parts := strings.Split(waypointSymbol, "-")
	if len(parts) < 3 {
		return waypointSymbol
	}
	return strings.Join(parts[:2], "-")
}
