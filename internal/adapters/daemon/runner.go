package daemon

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"

	"github.com/stellarforge/fleetd/internal/application/logging"
	"github.com/stellarforge/fleetd/internal/application/mediator"
	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// iterationReporter lets a workload response tell the runner how many
// iterations one dispatch covered. Looping workloads (scout tours, batch
// contracts) consume all their iterations inside a single dispatch and
// report the count; single-shot commands advance by one.
type iterationReporter interface {
	IterationsCompleted() int
}

// lifecycleMetrics receives container lifecycle events. Satisfied by
// metrics.ContainerMetricsCollector; nil disables recording.
type lifecycleMetrics interface {
	ContainerStarted(commandType string)
	ContainerExited(commandType string, exitCode int, durationSeconds float64)
	IterationCompleted(commandType string)
}

// containerRunner supervises one container in its own goroutine. It owns
// every status transition for the container, persisting each one in the
// same step so memory and store never disagree.
type containerRunner struct {
	container *container.Container
	command   mediator.Request
	sender    mediator.Sender

	store       container.ContainerRepository
	logs        container.ContainerLogRepository
	assignments container.ShipAssignmentRepository

	clock   shared.Clock
	logger  *log.Logger
	metrics lifecycleMetrics

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// stateMu serializes transitions between the runner goroutine and
	// Stop() so observers never see a status regression
	stateMu       sync.Mutex
	lastDecile    int
	startRecorded bool
}

func newContainerRunner(
	c *container.Container,
	command mediator.Request,
	sender mediator.Sender,
	store container.ContainerRepository,
	logs container.ContainerLogRepository,
	assignments container.ShipAssignmentRepository,
	clock shared.Clock,
	logger *log.Logger,
	metrics lifecycleMetrics,
) *containerRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &containerRunner{
		container:   c,
		command:     command,
		sender:      sender,
		store:       store,
		logs:        logs,
		assignments: assignments,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// commandType reads the command_type key the manager stamps into every config
func (r *containerRunner) commandType() string {
	commandType, _ := r.container.Config()["command_type"].(string)
	return commandType
}

// recordExitLocked emits the exit metric for a freshly terminal container.
// Callers hold stateMu and have just transitioned the status.
func (r *containerRunner) recordExitLocked() {
	if r.metrics == nil || !r.startRecorded {
		return
	}
	r.startRecorded = false
	exitCode := 0
	if code := r.container.ExitCode(); code != nil {
		exitCode = *code
	}
	var duration float64
	if startedAt := r.container.StartedAt(); startedAt != nil {
		duration = r.clock.Now().Sub(*startedAt).Seconds()
	}
	r.metrics.ContainerExited(r.commandType(), exitCode, duration)
}

func (r *containerRunner) Container() *container.Container { return r.container }

// Done is closed when the runner goroutine has fully finished, cleanup
// included
func (r *containerRunner) Done() <-chan struct{} { return r.done }

// Run drives the container to a terminal state. Called once, in its own
// goroutine.
func (r *containerRunner) Run() {
	defer close(r.done)

	// A panicking handler fails this container only; the daemon and every
	// other runner keep going
	defer func() {
		if rec := recover(); rec != nil {
			r.Log("ERROR", fmt.Sprintf("container panicked: %v", rec), nil)
			r.failWith(fmt.Errorf("panic: %v", rec))
			r.releaseShips()
		}
	}()

	if err := r.transitionRunning(); err != nil {
		r.failWith(err)
		r.releaseShips()
		return
	}
	r.Log("INFO", "container started", nil)

	err := r.execute()

	switch {
	case err == nil:
		r.complete()
	case r.ctx.Err() != nil:
		// Cancellation is a signal, not an error
		r.markStopped()
	default:
		r.Log("ERROR", fmt.Sprintf("container failed: %v", err), nil)
		r.failWith(err)
	}

	r.releaseShips()
}

// Stop signals cancellation and transitions the container to STOPPED
// immediately. It does not wait for the workload goroutine; the goroutine
// observes cancellation at its next suspension point and runs cleanup in
// the background. Stopping a stopped container is a no-op.
func (r *containerRunner) Stop() {
	r.cancel()
	r.markStopped()
}

// execute runs the command until the iteration budget is spent, the
// context is cancelled, or a non-restartable failure occurs
func (r *containerRunner) execute() error {
	for {
		r.stateMu.Lock()
		terminal := r.container.Status().IsTerminal()
		shouldContinue := r.container.ShouldContinue()
		r.stateMu.Unlock()

		if terminal || !shouldContinue {
			return nil
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}

		ctx := logging.WithLogger(r.ctx, r)
		response, err := r.sender.Send(ctx, r.command)
		if err != nil {
			if r.ctx.Err() != nil {
				return r.ctx.Err()
			}
			if r.tryRestart(err) {
				continue
			}
			return err
		}

		r.advance(response)
	}
}

// advance bumps the iteration counter by what the dispatch covered and
// logs progress at 10% steps for finite budgets
func (r *containerRunner) advance(response mediator.Response) {
	steps := 1
	if reporter, ok := response.(iterationReporter); ok {
		if n := reporter.IterationsCompleted(); n > steps {
			steps = n
		}
	}

	r.stateMu.Lock()
	for i := 0; i < steps; i++ {
		r.container.IncrementIteration()
		if r.metrics != nil {
			r.metrics.IterationCompleted(r.commandType())
		}
	}
	current := r.container.CurrentIteration()
	max := r.container.MaxIterations()
	r.stateMu.Unlock()

	if max <= 0 {
		return
	}
	decile := current * 10 / max
	if decile > 10 {
		decile = 10
	}
	if decile > r.lastDecile {
		r.lastDecile = decile
		r.Log("INFO", fmt.Sprintf("progress: %d/%d iterations (%d%%)", current, max, decile*10), nil)
	}
}

// tryRestart applies the restart policy after a failed iteration. The
// intermediate FAILED state stays in memory only; the stored status remains
// RUNNING across the restart because status rows are forward-only.
func (r *containerRunner) tryRestart(cause error) bool {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.container.Status().IsTerminal() {
		return false
	}
	if err := r.container.Fail(cause); err != nil {
		return false
	}
	if !r.container.CanRestart() {
		return false
	}

	r.container.ResetForRestart()
	if err := r.container.Start(); err != nil {
		return false
	}
	r.logger.Warn().
		Str("container_id", r.container.ID()).
		Int("restart_count", r.container.RestartCount()).
		Err(cause).
		Msg("restarting container after failure")
	return true
}

func (r *containerRunner) transitionRunning() error {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.container.Status().IsTerminal() {
		return fmt.Errorf("container %s is already %s", r.container.ID(), r.container.Status())
	}
	if r.container.Status() != container.ContainerStatusRunning {
		if err := r.container.Start(); err != nil {
			return err
		}
	}
	if err := r.persistLocked(); err != nil {
		return err
	}
	if r.metrics != nil {
		r.metrics.ContainerStarted(r.commandType())
		r.startRecorded = true
	}
	return nil
}

func (r *containerRunner) complete() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.container.Status().IsTerminal() {
		return
	}
	if err := r.container.Complete(); err != nil {
		return
	}
	r.persistLocked()
	r.recordExitLocked()
	r.Log("INFO", fmt.Sprintf("container completed after %d iteration(s)", r.container.CurrentIteration()), nil)
}

func (r *containerRunner) markStopped() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.container.Status().IsTerminal() {
		return
	}
	if err := r.container.MarkStopped(); err != nil {
		return
	}
	r.persistLocked()
	r.recordExitLocked()
	r.Log("INFO", "container stopped by user", nil)
}

func (r *containerRunner) failWith(cause error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()

	if r.container.Status().IsTerminal() {
		return
	}
	if err := r.container.Fail(cause); err != nil {
		return
	}
	r.persistLocked()
	r.recordExitLocked()
}

// persistLocked writes the container's current state to the store.
// Callers hold stateMu.
func (r *containerRunner) persistLocked() error {
	err := r.store.UpdateStatus(
		context.Background(),
		r.container.ID(),
		r.container.PlayerID(),
		r.container.Status(),
		r.container.StoppedAt(),
		r.container.ExitCode(),
		r.container.ExitReason(),
	)
	if err != nil {
		r.logger.Error().
			Str("container_id", r.container.ID()).
			Str("status", string(r.container.Status())).
			Err(err).
			Msg("failed to persist container status")
	}
	return err
}

// releaseShips frees every ship assignment the container holds, with the
// reason derived from the final status. This is the happy-path release for
// every workload; the health monitor only mops up leaks.
func (r *containerRunner) releaseShips() {
	reason := container.ReleaseReasonCompleted
	switch {
	case r.container.Status() == container.ContainerStatusFailed:
		reason = container.ReleaseReasonFailed
	case r.container.ExitCode() != nil && *r.container.ExitCode() == container.ExitCodeStopped:
		reason = container.ReleaseReasonStopped
	}

	if err := r.assignments.ReleaseByContainer(context.Background(), r.container.ID(), reason); err != nil {
		r.logger.Error().
			Str("container_id", r.container.ID()).
			Err(err).
			Msg("failed to release ship assignments")
	}
}

// Log implements logging.ContainerLogger: every line goes to the daemon
// log and to the container's durable log table
func (r *containerRunner) Log(level, message string, metadata map[string]interface{}) {
	var entry *log.Entry
	switch level {
	case "ERROR":
		entry = r.logger.Error()
	case "WARNING":
		entry = r.logger.Warn()
	case "DEBUG":
		entry = r.logger.Debug()
	default:
		entry = r.logger.Info()
	}
	entry = entry.Str("container_id", r.container.ID())
	for key, value := range metadata {
		entry = entry.Interface(key, value)
	}
	entry.Msg(message)

	line := message
	if len(metadata) > 0 {
		line = fmt.Sprintf("%s %v", message, metadata)
	}
	if err := r.logs.Append(context.Background(), r.container.ID(), r.container.PlayerID(), level, line, r.clock.Now()); err != nil {
		r.logger.Warn().Str("container_id", r.container.ID()).Err(err).Msg("failed to persist container log line")
	}
}
