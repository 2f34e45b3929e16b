package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stellarforge/fleetd/internal/adapters/daemon"
)

// NewContainerCommand groups container lifecycle subcommands
func NewContainerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Manage workload containers",
	}

	cmd.AddCommand(newContainerCreateCommand())
	cmd.AddCommand(newContainerListCommand())
	cmd.AddCommand(newContainerInspectCommand())
	cmd.AddCommand(newContainerStopCommand())
	cmd.AddCommand(newContainerRemoveCommand())
	cmd.AddCommand(newContainerLogsCommand())

	return cmd
}

func newContainerCreateCommand() *cobra.Command {
	var (
		commandType   string
		configPairs   []string
		maxIterations int
		restartPolicy string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and start a workload container",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePlayer(); err != nil {
				return err
			}
			config, err := parseConfigPairs(configPairs)
			if err != nil {
				return err
			}

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
				RestartPolicy: restartPolicy,
			})
			if err != nil {
				return err
			}
			fmt.Println(containerID)
			return nil
		},
	}

	cmd.Flags().StringVar(&commandType, "type", "", "Command type to run (e.g. scout_tour)")
	cmd.Flags().StringArrayVar(&configPairs, "config", nil,
		"Config entry as key=value; comma-separated values become lists")
	cmd.Flags().IntVar(&maxIterations, "iterations", 1, "Iteration budget, -1 for infinite")
	cmd.Flags().StringVar(&restartPolicy, "restart", "", "Restart policy (on_failure)")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newContainerListCommand() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			var player *int
			if playerID > 0 {
				player = &playerID
			}
			containers, err := client.ListContainers(context.Background(), player, status)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(containers)
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTAINER ID\tTYPE\tSTATUS\tITERATIONS\tEXIT")
			for _, c := range containers {
				exit := "-"
				if c.ExitCode != nil {
					exit = fmt.Sprintf("%d (%s)", *c.ExitCode, c.ExitReason)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					c.ContainerID, c.CommandType, c.Status, formatIterations(c.CurrentIteration, c.MaxIterations), exit)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (STARTING, RUNNING, STOPPED, FAILED)")
	return cmd
}

func newContainerInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <container-id>",
		Short: "Show one container's full state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			info, err := client.InspectContainer(context.Background(), args[0])
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

func newContainerStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <container-id>",
		Short: "Stop a running container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.StopContainer(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println(args[0])
			return nil
		},
	}
}

func newContainerRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <container-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a stopped container's record and logs",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.RemoveContainer(context.Background(), args[0], playerID); err != nil {
				return err
			}
			fmt.Println(args[0])
			return nil
		},
	}
}

func newContainerLogsCommand() *cobra.Command {
	var (
		level string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "logs <container-id>",
		Short: "Show a container's logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()

			lines, err := client.ContainerLogs(context.Background(), &daemon.ContainerLogsParams{
				ContainerID: args[0],
				PlayerID:    playerID,
				Level:       level,
				Limit:       limit,
			})
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(lines)
			}
			for _, line := range lines {
				fmt.Printf("%s %-7s %s\n", line.Timestamp.Format("2006-01-02T15:04:05Z07:00"), line.Level, line.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&level, "level", "", "Filter by level (INFO, WARNING, ERROR)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of lines")
	return cmd
}

// parseConfigPairs turns repeated key=value flags into a config map.
// Comma-separated values become string lists and numeric values become
// numbers, matching what the daemon expects from JSON configs.
func parseConfigPairs(pairs []string) (map[string]interface{}, error) {
	config := map[string]interface{}{}
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid config entry %q, want key=value", pair)
		}
		switch {
		case strings.Contains(value, ","):
			config[key] = strings.Split(value, ",")
		default:
			if n, err := strconv.Atoi(value); err == nil {
				config[key] = n
			} else {
				config[key] = value
			}
		}
	}
	return config, nil
}

func formatIterations(current, max int) string {
	if max < 0 {
		return fmt.Sprintf("%d/∞", current)
	}
	return fmt.Sprintf("%d/%d", current, max)
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
