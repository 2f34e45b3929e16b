package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellarforge/fleetd/internal/adapters/daemon"
)

// NewShipCommand groups single-ship operations. Navigation runs as a
// container because route legs can take minutes; dock, orbit and refuel are
// quick one-shot commands dispatched straight through the daemon.
func NewShipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Operate individual ships",
	}

	cmd.AddCommand(newShipNavigateCommand())
	cmd.AddCommand(newShipOneShotCommand("dock", "dock_ship", "Dock a ship at its current waypoint"))
	cmd.AddCommand(newShipOneShotCommand("orbit", "orbit_ship", "Move a ship into orbit"))
	cmd.AddCommand(newShipRefuelCommand())
	cmd.AddCommand(newShipFlightModeCommand())

	return cmd
}

func newShipNavigateCommand() *cobra.Command {
	var (
		shipSymbol  string
		destination string
	)

	cmd := &cobra.Command{
		Use:   "navigate",
		Short: "Navigate a ship along a fuel-aware route",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}

			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			containerID, err := client.CreateContainer(context.Background(), &daemon.CreateContainerParams{
				PlayerID:    playerID,
				CommandType: "navigate_route",
				Config: map[string]interface{}{
					"ship_symbol": shipSymbol,
					"destination": destination,
				},
			})
			if err != nil {
				return err
			}
			fmt.Printf("navigation started in container %s\n", containerID)
			fmt.Printf("follow it with: fleetd container logs %s\n", containerID)
			return nil
		},
	}

	cmd.Flags().StringVar(&shipSymbol, "ship", "", "Ship symbol")
	cmd.Flags().StringVar(&destination, "destination", "", "Destination waypoint symbol")
	cmd.MarkFlagRequired("ship")
	cmd.MarkFlagRequired("destination")

	return cmd
}

func newShipOneShotCommand(use, commandType, short string) *cobra.Command {
	var shipSymbol string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			return sendShipCommand(commandType, map[string]interface{}{
				"ship_symbol": shipSymbol,
			})
		},
	}

	cmd.Flags().StringVar(&shipSymbol, "ship", "", "Ship symbol")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newShipRefuelCommand() *cobra.Command {
	var (
		shipSymbol string
		units      int
	)

	cmd := &cobra.Command{
		Use:   "refuel",
		Short: "Refuel a docked ship",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			config := map[string]interface{}{"ship_symbol": shipSymbol}
			if units > 0 {
				config["units"] = units
			}
			return sendShipCommand("refuel_ship", config)
		},
	}

	cmd.Flags().StringVar(&shipSymbol, "ship", "", "Ship symbol")
	cmd.Flags().IntVar(&units, "units", 0, "Fuel units to buy (default: fill the tank)")
	cmd.MarkFlagRequired("ship")
	return cmd
}

func newShipFlightModeCommand() *cobra.Command {
	var (
		shipSymbol string
		mode       string
	)

	cmd := &cobra.Command{
		Use:   "set-flight-mode",
		Short: "Change a ship's flight mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			return sendShipCommand("set_flight_mode", map[string]interface{}{
				"ship_symbol": shipSymbol,
				"mode":        mode,
			})
		},
	}

	cmd.Flags().StringVar(&shipSymbol, "ship", "", "Ship symbol")
	cmd.Flags().StringVar(&mode, "mode", "", "Flight mode (BURN, CRUISE, DRIFT, STEALTH)")
	cmd.MarkFlagRequired("ship")
	cmd.MarkFlagRequired("mode")
	return cmd
}

func sendShipCommand(commandType string, config map[string]interface{}) error {
	client, err := dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.SendCommand(context.Background(), &daemon.SendCommandParams{
		CommandType: commandType,
		PlayerID:    playerID,
		Config:      config,
	})
	if err != nil {
		return err
	}
	os.Stdout.Write(result)
	fmt.Println()
	return nil
}
