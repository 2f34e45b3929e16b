package container

import (
	"context"
	"time"
)

// ContainerRepository is the durable container state store
type ContainerRepository interface {
	// Insert creates the STARTING row for a new container
	Insert(ctx context.Context, c *Container) error

	// UpdateStatus advances a container's stored status. Forward-only:
	// implementations reject transitions out of a terminal state, and
	// reject exit codes without a terminal status and stop timestamp.
	UpdateStatus(ctx context.Context, containerID string, playerID int, status ContainerStatus, stoppedAt *time.Time, exitCode *int, exitReason string) error

	// Get returns the container or (nil, nil) when the id is unknown.
	// A playerID of zero or less matches any player.
	Get(ctx context.Context, containerID string, playerID int) (*Container, error)

	// List returns containers, optionally filtered by player and status
	List(ctx context.Context, playerID *int, status *ContainerStatus) ([]*Container, error)

	// Delete removes a terminal container's row
	Delete(ctx context.Context, containerID string, playerID int) error
}

// ContainerLogEntry is one append-only log line attached to a container
type ContainerLogEntry struct {
	ContainerID string
	PlayerID    int
	Timestamp   time.Time
	Level       string
	Message     string
}

// LogFilter narrows a log read
type LogFilter struct {
	Since *time.Time
	Until *time.Time
	Level string
	Limit int
}

// ContainerLogRepository stores per-container log lines
type ContainerLogRepository interface {
	Append(ctx context.Context, containerID string, playerID int, level, message string, ts time.Time) error
	Read(ctx context.Context, containerID string, filter LogFilter) ([]*ContainerLogEntry, error)
	DeleteByContainer(ctx context.Context, containerID string) error
}

// ShipAssignmentRepository enforces at-most-one active operation per ship
type ShipAssignmentRepository interface {
	// Assign atomically acquires the ship for a container. Returns false
	// without error when the ship is already actively held.
	Assign(ctx context.Context, shipSymbol string, playerID int, containerID, operation string) (bool, error)

	// Reassign atomically moves the assignment from oldContainerID to
	// newContainerID, re-activating an idle row in place. Fails when the
	// row names a different container.
	Reassign(ctx context.Context, shipSymbol string, playerID int, oldContainerID, newContainerID string) error

	// Release idles the assignment with a reason; no-op when absent
	Release(ctx context.Context, shipSymbol string, playerID int, reason string) error

	// CheckAvailable reports whether no active assignment exists
	CheckAvailable(ctx context.Context, shipSymbol string, playerID int) (bool, error)

	// GetInfo returns the assignment row or (nil, nil) when absent
	GetInfo(ctx context.Context, shipSymbol string, playerID int) (*ShipAssignment, error)

	// ListActive returns every active assignment
	ListActive(ctx context.Context) ([]*ShipAssignment, error)

	// ReleaseByContainer idles every active assignment held by a container
	ReleaseByContainer(ctx context.Context, containerID string, reason string) error

	// ReleaseAllActive idles every active assignment and returns the count.
	// Invoked once at daemon startup to clear zombie locks.
	ReleaseAllActive(ctx context.Context, reason string) (int64, error)
}
