package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stellarforge/fleetd/internal/adapters/daemon"
)

// NewWorkflowCommand groups the long-running fleet workloads
func NewWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run long-lived fleet workflows",
	}

	cmd.AddCommand(newScoutTourCommand())
	cmd.AddCommand(newScoutMarketsCommand())
	cmd.AddCommand(newBatchContractCommand())
	cmd.AddCommand(newBuyShipsCommand())

	return cmd
}

func newScoutTourCommand() *cobra.Command {
	var (
		shipSymbol string
		markets    []string
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "scout-tour",
		Short: "Run one ship on a repeating market scouting tour",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			return createWorkflowContainer("scout_tour", iterations, map[string]interface{}{
				"ship_symbol": shipSymbol,
				"markets":     markets,
				"iterations":  iterations,
			})
		},
	}

	cmd.Flags().StringVar(&shipSymbol, "ship", "", "Ship symbol")
	cmd.Flags().StringSliceVar(&markets, "markets", nil, "Market waypoints to visit")
	cmd.Flags().IntVar(&iterations, "iterations", -1, "Tour passes, -1 for infinite")
	cmd.MarkFlagRequired("ship")
	cmd.MarkFlagRequired("markets")
	return cmd
}

func newScoutMarketsCommand() *cobra.Command {
	var (
		systemSymbol string
		ships        []string
		markets      []string
		iterations   int
	)

	cmd := &cobra.Command{
		Use:   "scout-markets",
		Short: "Partition markets across a scouting fleet and deploy tours",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			return createWorkflowContainer("scout_markets", 1, map[string]interface{}{
				"system_symbol": systemSymbol,
				"ship_symbols":  ships,
				"markets":       markets,
				"iterations":    iterations,
			})
		},
	}

	cmd.Flags().StringVar(&systemSymbol, "system", "", "System symbol")
	cmd.Flags().StringSliceVar(&ships, "ships", nil, "Scout ship symbols")
	cmd.Flags().StringSliceVar(&markets, "markets", nil, "Market waypoints to cover")
	cmd.Flags().IntVar(&iterations, "iterations", -1, "Tour passes per scout, -1 for infinite")
	cmd.MarkFlagRequired("system")
	cmd.MarkFlagRequired("ships")
	cmd.MarkFlagRequired("markets")
	return cmd
}

func newBatchContractCommand() *cobra.Command {
	var (
		shipSymbol string
		iterations int
	)

	cmd := &cobra.Command{
		Use:   "batch-contract",
		Short: "Run contract negotiate/fulfill cycles on one ship",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			return createWorkflowContainer("batch_contract", iterations, map[string]interface{}{
				"ship_symbol": shipSymbol,
				"iterations":  iterations,
			})
		},
	}

	cmd.Flags().StringVar(&shipSymbol, "ship", "", "Ship symbol")
	cmd.Flags().IntVar(&iterations, "iterations", 1, "Contract cycles, -1 for infinite")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newBuyShipsCommand() *cobra.Command {
	var (
		shipType         string
		shipyardWaypoint string
		quantity         int
		maxBudget        int
	)

	cmd := &cobra.Command{
		Use:   "buy-ships",
		Short: "Buy a batch of ships at a shipyard within a budget",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			return createWorkflowContainer("batch_purchase_ships", 1, map[string]interface{}{
				"ship_type":         shipType,
				"shipyard_waypoint": shipyardWaypoint,
				"quantity":          quantity,
				"max_budget":        maxBudget,
			})
		},
	}

	cmd.Flags().StringVar(&shipType, "type", "", "Ship type (e.g. SHIP_PROBE)")
	cmd.Flags().StringVar(&shipyardWaypoint, "shipyard", "", "Shipyard waypoint symbol")
	cmd.Flags().IntVar(&quantity, "quantity", 1, "How many ships to buy")
	cmd.Flags().IntVar(&maxBudget, "max-budget", 0, "Credit ceiling for the whole batch")
	cmd.MarkFlagRequired("type")
	cmd.MarkFlagRequired("shipyard")
	return cmd
}

func createWorkflowContainer(commandType string, maxIterations int, config map[string]interface{}) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	containerID, err := client.CreateContainer(context.Background(), &daemon.CreateContainerParams{
		PlayerID:      playerID,
		CommandType:   commandType,
		Config:        config,
		MaxIterations: maxIterations,
	})
	if err != nil {
		return err
	}
	fmt.Println(containerID)
	return nil
}
