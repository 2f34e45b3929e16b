package container_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarforge/fleetd/internal/domain/container"
	"github.com/stellarforge/fleetd/internal/domain/shared"
)

func TestNewShipAssignment_StartsActive(t *testing.T) {
	clock := shared.NewMockClock(time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))

	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "scout-tour-TESTSHIP1-deadbeef", "scout_tour", clock)
	require.NoError(t, err)

	assert.True(t, a.IsActive())
	assert.Equal(t, clock.Now(), a.AssignedAt)
	assert.Nil(t, a.ReleasedAt)
}

func TestNewShipAssignment_RejectsEmptyIdentifiers(t *testing.T) {
	_, err := container.NewShipAssignment("", 1, "c1", "scout_tour", nil)
	assert.True(t, shared.IsValidationError(err))

	_, err = container.NewShipAssignment("TESTSHIP-1", 1, "", "scout_tour", nil)
	assert.True(t, shared.IsValidationError(err))
}

func TestShipAssignment_ReleaseIsIdempotent(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "c1", "scout_tour", clock)
	require.NoError(t, err)

	a.Release(container.ReleaseReasonCompleted, clock)
	assert.False(t, a.IsActive())
	assert.Equal(t, container.ReleaseReasonCompleted, a.ReleaseReason)
	firstRelease := *a.ReleasedAt

	clock.Advance(time.Minute)
	a.Release(container.ReleaseReasonFailed, clock)

	assert.Equal(t, container.ReleaseReasonCompleted, a.ReleaseReason, "second release must not overwrite")
	assert.Equal(t, firstRelease, *a.ReleasedAt)
}

func TestShipAssignment_ReassignMovesActiveLock(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "old-container", "scout_tour", clock)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	require.NoError(t, a.Reassign("old-container", "new-container", clock))

	assert.True(t, a.IsActive())
	assert.Equal(t, "new-container", a.ContainerID)
	assert.Equal(t, clock.Now(), a.AssignedAt)
}

func TestShipAssignment_ReassignRequiresCurrentHolder(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "old-container", "scout_tour", clock)
	require.NoError(t, err)

	err = a.Reassign("some-other-container", "new-container", clock)
	assert.Error(t, err)
	assert.Equal(t, "old-container", a.ContainerID)
}

func TestShipAssignment_ReassignReactivatesReleasedLock(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "old-container", "scout_tour", clock)
	require.NoError(t, err)
	a.Release(container.ReleaseReasonFailed, clock)

	clock.Advance(time.Minute)
	require.NoError(t, a.Reassign("old-container", "new-container", clock))

	assert.True(t, a.IsActive())
	assert.Equal(t, "new-container", a.ContainerID)
	assert.Equal(t, clock.Now(), a.AssignedAt)
	assert.Nil(t, a.ReleasedAt)
	assert.Empty(t, a.ReleaseReason)
}

func TestShipAssignment_ReassignRejectsMismatchedHolderWhenIdle(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "old-container", "scout_tour", clock)
	require.NoError(t, err)
	a.Release(container.ReleaseReasonStopped, clock)

	assert.Error(t, a.Reassign("some-other-container", "new-container", clock))
	assert.False(t, a.IsActive())
}

func TestShipAssignment_IsStale(t *testing.T) {
	clock := shared.NewMockClock(time.Now())
	a, err := container.NewShipAssignment("TESTSHIP-1", 1, "c1", "scout_tour", clock)
	require.NoError(t, err)

	assert.False(t, a.IsStale(time.Hour, clock))

	clock.Advance(2 * time.Hour)
	assert.True(t, a.IsStale(time.Hour, clock))

	a.Release(container.ReleaseReasonStale, clock)
	assert.False(t, a.IsStale(time.Hour, clock), "idle assignments are never stale")
}
