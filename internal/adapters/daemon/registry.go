package daemon

import (
	"fmt"
	"sort"

	"github.com/stellarforge/fleetd/internal/application/contract"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/application/scouting"
	"github.com/stellarforge/fleetd/internal/application/ship"
	"github.com/stellarforge/fleetd/internal/application/shipyard"
)

// CommandFactory builds a mediator command from a container's stored config.
// Config values come from JSON, so numbers arrive as float64.
type CommandFactory func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error)

// CommandRegistry resolves command_type keys to factories. Container
// creation and crash recovery both go through it; an unknown key is an
// invalid_config failure, never a partially-built container.
type CommandRegistry struct {
	factories map[string]CommandFactory
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{factories: map[string]CommandFactory{}}
}

// Register adds a factory under a command_type key
func (r *CommandRegistry) Register(commandType string, factory CommandFactory) {
	r.factories[commandType] = factory
}

// Known reports whether a command_type is registered
func (r *CommandRegistry) Known(commandType string) bool {
	_, ok := r.factories[commandType]
	return ok
}

// KnownTypes lists every registered command_type, sorted
func (r *CommandRegistry) KnownTypes() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Build constructs the command for a container's stored config
func (r *CommandRegistry) Build(commandType string, config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
	factory, ok := r.factories[commandType]
	if !ok {
		return nil, fmt.Errorf("unknown command type %q", commandType)
	}
	return factory(config, containerID, playerID)
}

// NewDefaultRegistry registers the factory for every workload the daemon
// can run. Adding a container type only requires a new entry here.
func NewDefaultRegistry() *CommandRegistry {
	r := NewCommandRegistry()

	r.Register("scout_tour", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		markets, err := configStringSlice(config, "markets")
		if err != nil {
			return nil, err
		}
		iterations, err := configInt(config, "iterations")
		if err != nil {
			return nil, err
		}
		return &scouting.ScoutTourCommand{
			PlayerID:   playerID,
			ShipSymbol: shipSymbol,
			Markets:    markets,
			Iterations: iterations,
		}, nil
	})

	r.Register("scout_markets", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		systemSymbol, err := configString(config, "system_symbol")
		if err != nil {
			return nil, err
		}
		shipSymbols, err := configStringSlice(config, "ship_symbols")
		if err != nil {
			return nil, err
		}
		markets, err := configStringSlice(config, "markets")
		if err != nil {
			return nil, err
		}
		iterations, err := configInt(config, "iterations")
		if err != nil {
			return nil, err
		}
		return &scouting.ScoutMarketsCommand{
			PlayerID:            playerID,
			SystemSymbol:        systemSymbol,
			ShipSymbols:         shipSymbols,
			Markets:             markets,
			Iterations:          iterations,
			DeployerContainerID: containerID,
		}, nil
	})

	r.Register("navigate_route", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		destination, err := configString(config, "destination")
		if err != nil {
			return nil, err
		}
		return &ship.NavigateRouteCommand{
			ShipSymbol:  shipSymbol,
			Destination: destination,
			PlayerID:    playerID,
		}, nil
	})

	r.Register("dock_ship", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		return &ship.DockShipCommand{ShipSymbol: shipSymbol, PlayerID: playerID}, nil
	})

	r.Register("orbit_ship", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		return &ship.OrbitShipCommand{ShipSymbol: shipSymbol, PlayerID: playerID}, nil
	})

	r.Register("refuel_ship", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		cmd := &ship.RefuelShipCommand{ShipSymbol: shipSymbol, PlayerID: playerID}
		if _, present := config["units"]; present {
			units, err := configInt(config, "units")
			if err != nil {
				return nil, err
			}
			cmd.Units = &units
		}
		return cmd, nil
	})

	r.Register("set_flight_mode", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		mode, err := configString(config, "mode")
		if err != nil {
			return nil, err
		}
		return &ship.SetFlightModeCommand{ShipSymbol: shipSymbol, Mode: mode, PlayerID: playerID}, nil
	})

	r.Register("batch_contract", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipSymbol, err := configString(config, "ship_symbol")
		if err != nil {
			return nil, err
		}
		iterations, err := configInt(config, "iterations")
		if err != nil {
			return nil, err
		}
		return &contract.BatchContractWorkflowCommand{
			ShipSymbol: shipSymbol,
			PlayerID:   playerID,
			Iterations: iterations,
		}, nil
	})

	r.Register("batch_purchase_ships", func(config map[string]interface{}, containerID string, playerID int) (mediator.Request, error) {
		shipType, err := configString(config, "ship_type")
		if err != nil {
			return nil, err
		}
		shipyardWaypoint, err := configString(config, "shipyard_waypoint")
		if err != nil {
			return nil, err
		}
		quantity, err := configInt(config, "quantity")
		if err != nil {
			return nil, err
		}
		maxBudget, err := configInt(config, "max_budget")
		if err != nil {
			return nil, err
		}
		return &shipyard.BatchPurchaseShipsCommand{
			ShipType:         shipType,
			ShipyardWaypoint: shipyardWaypoint,
			Quantity:         quantity,
			MaxBudget:        maxBudget,
			PlayerID:         playerID,
		}, nil
	})

	return r
}

// shipSymbolFromConfig pulls the ship_symbol a config references, if any.
// Recovery uses it to re-acquire assignments and to detect vanished ships.
func shipSymbolFromConfig(config map[string]interface{}) string {
	symbol, _ := config["ship_symbol"].(string)
	return symbol
}

// assignmentOperation maps a command type to the operation label recorded
// on the ship assignment it holds
func assignmentOperation(commandType string) string {
	switch commandType {
	case "scout_tour":
		return "scout_tour"
	case "batch_contract":
		return "contract_workflow"
	default:
		return commandType
	}
}

func configString(config map[string]interface{}, key string) (string, error) {
	value, ok := config[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("missing or invalid %s", key)
	}
	return value, nil
}

func configStringSlice(config map[string]interface{}, key string) ([]string, error) {
	switch raw := config[key].(type) {
	case []string:
		return raw, nil
	case []interface{}:
		values := make([]string, len(raw))
		for i, item := range raw {
			value, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("invalid %s entry at index %d", key, i)
			}
			values[i] = value
		}
		return values, nil
	default:
		return nil, fmt.Errorf("missing or invalid %s", key)
	}
}

func configInt(config map[string]interface{}, key string) (int, error) {
	switch value := config[key].(type) {
	case int:
		return value, nil
	case float64:
		return int(value), nil
	default:
		return 0, fmt.Errorf("missing or invalid %s", key)
	}
}
