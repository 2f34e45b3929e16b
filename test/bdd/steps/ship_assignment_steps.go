package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

type shipAssignmentContext struct {
	clock       *shared.MockClock
	assignments map[string]*container.ShipAssignment
	assignment  *container.ShipAssignment
	assignedAt  time.Time
	err         error
}

func (sac *shipAssignmentContext) reset() {
	sac.clock = shared.NewMockClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	sac.assignments = make(map[string]*container.ShipAssignment)
	sac.assignment = nil
	sac.assignedAt = time.Time{}
	sac.err = nil
}

// ============================================================================
// Assignment steps
// ============================================================================

func (sac *shipAssignmentContext) shipIsAssignedToContainerWithOperation(shipSymbol, containerID, operation string) error {
	sac.assignment, sac.err = container.NewShipAssignment(shipSymbol, 1, containerID, operation, sac.clock)
	if sac.err == nil {
		sac.assignments[shipSymbol] = sac.assignment
		sac.assignedAt = sac.assignment.AssignedAt
	}
	return nil
}

func (sac *shipAssignmentContext) aShipWithAnEmptySymbolIsAssignedToContainer(containerID string) error {
	sac.assignment, sac.err = container.NewShipAssignment("", 1, containerID, "scout_tour", sac.clock)
	return nil
}

func (sac *shipAssignmentContext) theAssignmentForIsReleasedWithReason(shipSymbol, reason string) error {
	assignment, ok := sac.assignments[shipSymbol]
	if !ok {
		return fmt.Errorf("no assignment recorded for ship %s", shipSymbol)
	}
	assignment.Release(reason, sac.clock)
	sac.assignment = assignment
	return nil
}

func (sac *shipAssignmentContext) containerReassignsShipToContainer(oldContainerID, shipSymbol, newContainerID string) error {
	assignment, ok := sac.assignments[shipSymbol]
	if !ok {
		return fmt.Errorf("no assignment recorded for ship %s", shipSymbol)
	}
	sac.err = assignment.Reassign(oldContainerID, newContainerID, sac.clock)
	sac.assignment = assignment
	return nil
}

func (sac *shipAssignmentContext) theClockAdvancesMinutes(minutes int) error {
	sac.clock.Advance(time.Duration(minutes) * time.Minute)
	return nil
}

func (sac *shipAssignmentContext) theClockAdvancesHours(hours int) error {
	sac.clock.Advance(time.Duration(hours) * time.Hour)
	return nil
}

// ============================================================================
// Assertion steps
// ============================================================================

func (sac *shipAssignmentContext) shipShouldBeHeldByContainer(shipSymbol, containerID string) error {
	assignment, ok := sac.assignments[shipSymbol]
	if !ok {
		return fmt.Errorf("no assignment recorded for ship %s", shipSymbol)
	}
	if assignment.ContainerID != containerID {
		return fmt.Errorf("expected ship %s held by %s, got %s", shipSymbol, containerID, assignment.ContainerID)
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentStatusShouldBe(status string) error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if got := string(sac.assignment.Status); got != status {
		return fmt.Errorf("expected assignment status %s, got %s", status, got)
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentShouldRecordAnAssignedAtTimestamp() error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if sac.assignment.AssignedAt.IsZero() {
		return fmt.Errorf("expected assigned_at to be set")
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentShouldRecordAReleasedAtTimestamp() error {
	if sac.assignment == nil || sac.assignment.ReleasedAt == nil {
		return fmt.Errorf("expected released_at to be set")
	}
	return nil
}

func (sac *shipAssignmentContext) theReleaseReasonShouldBe(reason string) error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if sac.assignment.ReleaseReason != reason {
		return fmt.Errorf("expected release reason %q, got %q", reason, sac.assignment.ReleaseReason)
	}
	return nil
}

func (sac *shipAssignmentContext) theReleaseReasonShouldBeCleared() error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if sac.assignment.ReleaseReason != "" || sac.assignment.ReleasedAt != nil {
		return fmt.Errorf("expected release bookkeeping cleared, got reason %q", sac.assignment.ReleaseReason)
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentShouldFailWithError(message string) error {
	if sac.err == nil {
		return fmt.Errorf("expected an error containing %q, got none", message)
	}
	if !strings.Contains(sac.err.Error(), message) {
		return fmt.Errorf("expected error containing %q, got %q", message, sac.err.Error())
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentTimestampShouldBeRefreshed() error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if !sac.assignment.AssignedAt.After(sac.assignedAt) {
		return fmt.Errorf("expected assigned_at after %s, got %s", sac.assignedAt, sac.assignment.AssignedAt)
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentShouldBeStaleAfterHours(hours int) error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if !sac.assignment.IsStale(time.Duration(hours)*time.Hour, sac.clock) {
		return fmt.Errorf("expected the assignment to be stale")
	}
	return nil
}

func (sac *shipAssignmentContext) theAssignmentShouldNotBeStaleAfterHours(hours int) error {
	if sac.assignment == nil {
		return fmt.Errorf("no assignment in scope")
	}
	if sac.assignment.IsStale(time.Duration(hours)*time.Hour, sac.clock) {
		return fmt.Errorf("expected the assignment not to be stale")
	}
	return nil
}

// InitializeShipAssignmentScenario registers the ship assignment step
// definitions
func InitializeShipAssignmentScenario(ctx *godog.ScenarioContext) {
	sac := &shipAssignmentContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		sac.reset()
		return ctx, nil
	})

	// Assignment steps
	ctx.Step(`^ship "([^"]*)" is assigned to container "([^"]*)" with operation "([^"]*)"$`,
		sac.shipIsAssignedToContainerWithOperation)
	ctx.Step(`^a ship with an empty symbol is assigned to container "([^"]*)"$`,
		sac.aShipWithAnEmptySymbolIsAssignedToContainer)
	ctx.Step(`^the assignment for "([^"]*)" is released with reason "([^"]*)"$`,
		sac.theAssignmentForIsReleasedWithReason)
	ctx.Step(`^container "([^"]*)" reassigns ship "([^"]*)" to container "([^"]*)"$`,
		sac.containerReassignsShipToContainer)
	ctx.Step(`^the clock advances (\d+) minutes$`, sac.theClockAdvancesMinutes)
	ctx.Step(`^the clock advances (\d+) hours$`, sac.theClockAdvancesHours)

	// Assertion steps
	ctx.Step(`^ship "([^"]*)" should be held by container "([^"]*)"$`,
		sac.shipShouldBeHeldByContainer)
	ctx.Step(`^the assignment status should be "([^"]*)"$`, sac.theAssignmentStatusShouldBe)
	ctx.Step(`^the assignment should record an assigned_at timestamp$`,
		sac.theAssignmentShouldRecordAnAssignedAtTimestamp)
	ctx.Step(`^the assignment should record a released_at timestamp$`,
		sac.theAssignmentShouldRecordAReleasedAtTimestamp)
	ctx.Step(`^the release reason should be "([^"]*)"$`, sac.theReleaseReasonShouldBe)
	ctx.Step(`^the release reason should be cleared$`, sac.theReleaseReasonShouldBeCleared)
	ctx.Step(`^the assignment should fail with error "([^"]*)"$`, sac.theAssignmentShouldFailWithError)
	ctx.Step(`^the assignment timestamp should be refreshed$`, sac.theAssignmentTimestampShouldBeRefreshed)
	ctx.Step(`^the assignment should be stale after (\d+) hours$`, sac.theAssignmentShouldBeStaleAfterHours)
	ctx.Step(`^the assignment should not be stale after (\d+) hours$`,
		sac.theAssignmentShouldNotBeStaleAfterHours)
}
