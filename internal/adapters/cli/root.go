package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stellarforge/fleetd/internal/adapters/daemon"
)

var (
	// Global flags
	socketPath string
	playerID   int
	jsonOutput bool
)

// NewRootCommand creates the fleetd CLI root. The serve command is added by
// the daemon binary; everything else talks to a running daemon over its
// unix socket.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetd",
		Short: "Fleet orchestration daemon and client",
		Long: `fleetd runs long-lived fleet workloads as supervised containers.

Examples:
  fleetd serve
  fleetd container create --player-id 1 --type scout_tour --config ship_symbol=SCOUT-1 --config markets=X1-A1,X1-B2
  fleetd container ls
  fleetd container logs scout-tour-SCOUT-1-a1b2c3d4
  fleetd ship navigate --player-id 1 --ship SCOUT-1 --destination X1-GZ7-B1
  fleetd ping`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", defaultSocketPath(),
		"Path to the daemon unix socket")
	rootCmd.PersistentFlags().IntVar(&playerID, "player-id", 0,
		"Player the operation acts for")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Print raw JSON instead of tables")

	rootCmd.AddCommand(NewContainerCommand())
	rootCmd.AddCommand(NewShipCommand())
	rootCmd.AddCommand(NewWorkflowCommand())
	rootCmd.AddCommand(NewPingCommand())

	return rootCmd
}

func defaultSocketPath() string {
	if path := os.Getenv("FLEETD_SOCKET"); path != "" {
		return path
	}
	return "/tmp/fleetd.sock"
}

// dialDaemon connects to the daemon socket with a short timeout
func dialDaemon() (*daemon.Client, error) {
	client, err := daemon.Dial(socketPath, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("daemon not reachable at %s (is it running?): %w", socketPath, err)
	}
	return client, nil
}

func requirePlayer() error {
	if playerID <= 0 {
		return fmt.Errorf("--player-id is required")
	}
	return nil
}
