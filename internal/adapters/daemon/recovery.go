package daemon

import (
	"context"
	"fmt"

	"github.com/stellarforge/fleetd/internal/domain/container"
)

// Recover replays the container table after a daemon restart. It runs to
// completion before the IPC server accepts its first request:
//
//  1. every active ship assignment is released with reason daemon_restart
//     (the holding containers died with the old process),
//  2. every STARTING or RUNNING row is resumed: its command is rebuilt
//     from the stored config and relaunched, re-acquiring the ship lock,
//  3. rows whose config cannot be rebuilt are closed out as FAILED with
//     reason invalid_config; rows whose ship no longer exists with reason
//     missing_resource,
//  4. terminal rows are left untouched.
func (m *Manager) Recover(ctx context.Context) error {
	released, err := m.assignments.ReleaseAllActive(ctx, container.ReleaseReasonDaemonRestart)
	if err != nil {
		return fmt.Errorf("failed to release stale assignments: %w", err)
	}
	if released > 0 {
		m.logger.Info().Int64("count", released).Msg("released ship assignments from previous run")
	}

	resumed, failed := 0, 0
	for _, status := range []container.ContainerStatus{container.ContainerStatusStarting, container.ContainerStatusRunning} {
		statusFilter := status
		rows, err := m.store.List(ctx, nil, &statusFilter)
		if err != nil {
			return fmt.Errorf("failed to list %s containers: %w", status, err)
		}
		for _, row := range rows {
			if m.resume(ctx, row) {
				resumed++
			} else {
				failed++
			}
		}
	}

	if resumed > 0 || failed > 0 {
		m.logger.Info().Int("resumed", resumed).Int("failed", failed).Msg("container recovery finished")
	}
	return nil
}

// resume relaunches one recovered container, or closes it out as FAILED
// when it cannot run again. Returns true when the container was relaunched.
func (m *Manager) resume(ctx context.Context, c *container.Container) bool {
	config := c.Config()
	commandType, _ := config["command_type"].(string)

	if commandType == "" || !m.registry.Known(commandType) {
		m.closeOut(ctx, c, container.ExitCodeInvalidConfig, container.ExitReasonInvalidConfig,
			fmt.Sprintf("unknown command type %q", commandType))
		return false
	}

	command, err := m.registry.Build(commandType, config, c.ID(), c.PlayerID())
	if err != nil {
		m.closeOut(ctx, c, container.ExitCodeInvalidConfig, container.ExitReasonInvalidConfig, err.Error())
		return false
	}

	if shipSymbol := shipSymbolFromConfig(config); shipSymbol != "" {
		ship, err := m.shipRepo.FindBySymbol(ctx, shipSymbol, c.PlayerID())
		if err != nil || ship == nil {
			m.closeOut(ctx, c, container.ExitCodeMissingResource, container.ExitReasonMissingResource,
				fmt.Sprintf("ship %s no longer exists", shipSymbol))
			return false
		}
		if err := m.acquireShip(ctx, config, c.ID(), c.PlayerID(), commandType); err != nil {
			m.closeOut(ctx, c, container.ExitCodeMissingResource, container.ExitReasonMissingResource, err.Error())
			return false
		}
	}

	m.launch(c, command)
	m.logger.Info().
		Str("container_id", c.ID()).
		Str("command_type", commandType).
		Int("iteration", c.CurrentIteration()).
		Msg("resumed container from previous run")
	return true
}

// closeOut marks a recovered container FAILED in memory and store and
// records why in its log
func (m *Manager) closeOut(ctx context.Context, c *container.Container, exitCode int, reason, detail string) {
	if err := c.FailWith(exitCode, reason, fmt.Errorf("%s", detail)); err != nil {
		m.logger.Error().Str("container_id", c.ID()).Err(err).Msg("failed to mark recovered container failed")
		return
	}
	if err := m.store.UpdateStatus(ctx, c.ID(), c.PlayerID(), c.Status(), c.StoppedAt(), c.ExitCode(), reason); err != nil {
		m.logger.Error().Str("container_id", c.ID()).Err(err).Msg("failed to persist recovery failure")
	}
	if err := m.logs.Append(ctx, c.ID(), c.PlayerID(), "ERROR",
		fmt.Sprintf("not recoverable: %s (%s)", reason, detail), m.clock.Now()); err != nil {
		m.logger.Warn().Str("container_id", c.ID()).Err(err).Msg("failed to persist recovery log line")
	}

	m.logger.Warn().
		Str("container_id", c.ID()).
		Str("reason", reason).
		Str("detail", detail).
		Msg("recovered container could not be resumed")
}
