package container

import (
	"fmt"
	"time"

	"github.com/stellarforge/fleetd/internal/domain/shared"
)

// AssignmentStatus is the state of a ship assignment row
type AssignmentStatus string

const (
	AssignmentStatusActive AssignmentStatus = "active"
	AssignmentStatusIdle   AssignmentStatus = "idle"
)

// Well-known release reasons
const (
	ReleaseReasonCompleted     = "completed"
	ReleaseReasonFailed        = "failed"
	ReleaseReasonStopped       = "stopped"
	ReleaseReasonDaemonRestart = "daemon_restart"
	ReleaseReasonStale         = "stale_cleanup"
)

// ShipAssignment is the exclusive lock binding a ship to a container.
// At most one active assignment may exist per (player, ship).
type ShipAssignment struct {
	ShipSymbol    string
	PlayerID      int
	ContainerID   string
	Operation     string
	Status        AssignmentStatus
	AssignedAt    time.Time
	ReleasedAt    *time.Time
	ReleaseReason string
}

// NewShipAssignment creates an active assignment
func NewShipAssignment(shipSymbol string, playerID int, containerID, operation string, clock shared.Clock) (*ShipAssignment, error) {
	if shipSymbol == "" {
		return nil, shared.NewValidationError("ship_symbol", "cannot be empty")
	}
	if containerID == "" {
		return nil, shared.NewValidationError("container_id", "cannot be empty")
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}

	return &ShipAssignment{
		ShipSymbol:  shipSymbol,
		PlayerID:    playerID,
		ContainerID: containerID,
		Operation:   operation,
		Status:      AssignmentStatusActive,
		AssignedAt:  clock.Now(),
	}, nil
}

// IsActive reports whether the assignment currently holds the ship
func (a *ShipAssignment) IsActive() bool {
	return a.Status == AssignmentStatusActive
}

// Release marks the assignment idle with a reason. Releasing an already
// idle assignment is a no-op, so release is idempotent.
func (a *ShipAssignment) Release(reason string, clock shared.Clock) {
	if !a.IsActive() {
		return
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}

	now := clock.Now()
	a.Status = AssignmentStatusIdle
	a.ReleasedAt = &now
	a.ReleaseReason = reason
}

// Reassign hands the ship from oldContainerID to a new container, refreshing
// the assignment timestamp. An idle row is re-activated in place, so a
// container that failed and released its ship can still hand it to a
// successor. The handover is refused only when oldContainerID is not the
// container the row names.
func (a *ShipAssignment) Reassign(oldContainerID, newContainerID string, clock shared.Clock) error {
	if a.ContainerID != oldContainerID {
		return fmt.Errorf("cannot reassign ship %s: held by %s, not %s", a.ShipSymbol, a.ContainerID, oldContainerID)
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}

	a.ContainerID = newContainerID
	a.Status = AssignmentStatusActive
	a.AssignedAt = clock.Now()
	a.ReleasedAt = nil
	a.ReleaseReason = ""
	return nil
}

// IsStale reports whether an active assignment is older than maxAge
func (a *ShipAssignment) IsStale(maxAge time.Duration, clock shared.Clock) bool {
	if !a.IsActive() {
		return false
	}
	if clock == nil {
		clock = shared.NewRealClock()
	}
	return clock.Now().Sub(a.AssignedAt) > maxAge
}

func (a *ShipAssignment) String() string {
	return fmt.Sprintf("ShipAssignment[%s → %s, op=%s, status=%s]",
		a.ShipSymbol, a.ContainerID, a.Operation, a.Status)
}
