package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

type containerLifecycleContext struct {
	clock     *shared.MockClock
	container *container.Container
	err       error
}

func (clc *containerLifecycleContext) reset() {
	clc.clock = shared.NewMockClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	clc.container = nil
	clc.err = nil
}

// ============================================================================
// Setup steps
// ============================================================================

func (clc *containerLifecycleContext) aCommandContainerWithMaxIterations(containerID string, maxIterations int) error {
	clc.container = container.NewContainer(
		containerID, container.ContainerTypeCommand, 1, nil, "", maxIterations, clc.clock,
	)
	return nil
}

func (clc *containerLifecycleContext) aCommandContainerWithInfiniteIterations(containerID string) error {
	return clc.aCommandContainerWithMaxIterations(containerID, container.IterationsInfinite)
}

func (clc *containerLifecycleContext) aCommandContainerWithRestartPolicy(containerID, policy string) error {
	clc.container = container.NewContainer(
		containerID, container.ContainerTypeCommand, 1, nil,
		container.RestartPolicy(policy), 1, clc.clock,
	)
	return nil
}

// ============================================================================
// Transition steps - errors are captured, not returned, so scenarios can
// assert on rejected transitions
// ============================================================================

func (clc *containerLifecycleContext) theContainerStarts() error {
	clc.clock.Advance(time.Second)
	clc.err = clc.container.Start()
	return nil
}

func (clc *containerLifecycleContext) theContainerCompletes() error {
	clc.clock.Advance(time.Second)
	clc.err = clc.container.Complete()
	return nil
}

func (clc *containerLifecycleContext) theContainerIsStoppedByTheOperator() error {
	clc.clock.Advance(time.Second)
	clc.err = clc.container.MarkStopped()
	return nil
}

func (clc *containerLifecycleContext) theContainerFailsWithError(message string) error {
	clc.clock.Advance(time.Second)
	clc.err = clc.container.Fail(errors.New(message))
	return nil
}

func (clc *containerLifecycleContext) theContainerRunsIterations(count int) error {
	for i := 0; i < count; i++ {
		clc.container.IncrementIteration()
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerIsResetForRestart() error {
	if !clc.container.CanRestart() {
		return fmt.Errorf("container %s is not restartable", clc.container.ID())
	}
	clc.container.ResetForRestart()
	return nil
}

// ============================================================================
// Assertion steps
// ============================================================================

func (clc *containerLifecycleContext) theContainerStatusShouldBe(status string) error {
	if got := string(clc.container.Status()); got != status {
		return fmt.Errorf("expected status %s, got %s", status, got)
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerShouldHaveNoExitCode() error {
	if code := clc.container.ExitCode(); code != nil {
		return fmt.Errorf("expected no exit code, got %d", *code)
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerShouldHaveAStartedAtTimestamp() error {
	if clc.container.StartedAt() == nil {
		return fmt.Errorf("expected started_at to be set")
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerExitCodeShouldBeWithReason(code int, reason string) error {
	got := clc.container.ExitCode()
	if got == nil {
		return fmt.Errorf("expected exit code %d, got none", code)
	}
	if *got != code {
		return fmt.Errorf("expected exit code %d, got %d", code, *got)
	}
	if clc.container.ExitReason() != reason {
		return fmt.Errorf("expected exit reason %q, got %q", reason, clc.container.ExitReason())
	}
	return nil
}

func (clc *containerLifecycleContext) theLifecycleOperationShouldFail() error {
	if clc.err == nil {
		return fmt.Errorf("expected the operation to fail, but it succeeded")
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerShouldWantAnotherIteration() error {
	if !clc.container.ShouldContinue() {
		return fmt.Errorf("expected the container to want another iteration at %d/%d",
			clc.container.CurrentIteration(), clc.container.MaxIterations())
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerShouldNotWantAnotherIteration() error {
	if clc.container.ShouldContinue() {
		return fmt.Errorf("expected the iteration budget to be exhausted at %d/%d",
			clc.container.CurrentIteration(), clc.container.MaxIterations())
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerShouldBeRestartable() error {
	if !clc.container.CanRestart() {
		return fmt.Errorf("expected policy %s to allow a restart from %s",
			clc.container.RestartPolicy(), clc.container.Status())
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerShouldNotBeRestartable() error {
	if clc.container.CanRestart() {
		return fmt.Errorf("expected policy %s to forbid a restart from %s",
			clc.container.RestartPolicy(), clc.container.Status())
	}
	return nil
}

func (clc *containerLifecycleContext) theContainerRestartCountShouldBe(count int) error {
	if clc.container.RestartCount() != count {
		return fmt.Errorf("expected restart count %d, got %d", count, clc.container.RestartCount())
	}
	return nil
}

// InitializeContainerLifecycleScenario registers the container lifecycle
// step definitions
func InitializeContainerLifecycleScenario(ctx *godog.ScenarioContext) {
	clc := &containerLifecycleContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		clc.reset()
		return ctx, nil
	})

	// Setup steps
	ctx.Step(`^a command container "([^"]*)" with max iterations (-?\d+)$`,
		clc.aCommandContainerWithMaxIterations)
	ctx.Step(`^a command container "([^"]*)" with infinite iterations$`,
		clc.aCommandContainerWithInfiniteIterations)
	ctx.Step(`^a command container "([^"]*)" with restart policy "([^"]*)"$`,
		clc.aCommandContainerWithRestartPolicy)

	// Transition steps
	ctx.Step(`^the container starts$`, clc.theContainerStarts)
	ctx.Step(`^the container completes$`, clc.theContainerCompletes)
	ctx.Step(`^the container is stopped by the operator$`, clc.theContainerIsStoppedByTheOperator)
	ctx.Step(`^the container fails with error "([^"]*)"$`, clc.theContainerFailsWithError)
	ctx.Step(`^the container runs (\d+) iterations$`, clc.theContainerRunsIterations)
	ctx.Step(`^the container is reset for restart$`, clc.theContainerIsResetForRestart)

	// Assertion steps
	ctx.Step(`^the container status should be "([^"]*)"$`, clc.theContainerStatusShouldBe)
	ctx.Step(`^the container should have no exit code$`, clc.theContainerShouldHaveNoExitCode)
	ctx.Step(`^the container should have a started_at timestamp$`,
		clc.theContainerShouldHaveAStartedAtTimestamp)
	ctx.Step(`^the container exit code should be (\d+) with reason "([^"]*)"$`,
		clc.theContainerExitCodeShouldBeWithReason)
	ctx.Step(`^the lifecycle operation should fail$`, clc.theLifecycleOperationShouldFail)
	ctx.Step(`^the container should want another iteration$`, clc.theContainerShouldWantAnotherIteration)
	ctx.Step(`^the container should not want another iteration$`,
		clc.theContainerShouldNotWantAnotherIteration)
	ctx.Step(`^the container should be restartable$`, clc.theContainerShouldBeRestartable)
	ctx.Step(`^the container should not be restartable$`, clc.theContainerShouldNotBeRestartable)
	ctx.Step(`^the container restart count should be (\d+)$`, clc.theContainerRestartCountShouldBe)
}
