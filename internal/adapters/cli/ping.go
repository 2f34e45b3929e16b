package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewPingCommand checks daemon liveness
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check whether the daemon is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			result, err := client.Ping(context.Background())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(result)
			}
			fmt.Printf("%s fleetd %s, %d active container(s)\n", result.Status, result.Version, result.ActiveContainers)
			return nil
		},
	}
}
