package shared

import (
	"fmt"
	"time"
)

// LifecycleStatus is the state of an entity in its lifecycle
type LifecycleStatus string

const (
	// LifecycleStatusStarting indicates the entity is created but its work
	// has not begun yet
	LifecycleStatusStarting LifecycleStatus = "STARTING"

	// LifecycleStatusRunning indicates the entity is actively executing
	LifecycleStatusRunning LifecycleStatus = "RUNNING"

	// LifecycleStatusStopped indicates the entity finished or was stopped;
	// exit code and reason distinguish the two
	LifecycleStatusStopped LifecycleStatus = "STOPPED"

	// LifecycleStatusFailed indicates the entity encountered an error
	LifecycleStatusFailed LifecycleStatus = "FAILED"
)

// IsTerminal reports whether the status admits no further transitions
func (s LifecycleStatus) IsTerminal() bool {
	return s == LifecycleStatusStopped || s == LifecycleStatusFailed
}

// LifecycleStateMachine manages STARTING → RUNNING → STOPPED/FAILED
// transitions with timestamps. Entities embed it by composition so the
// transition rules live in one place.
//
// Invariants:
//   - terminal states never revert
//   - stoppedAt is set exactly when a terminal state is entered
//   - the clock is injected for testability
type LifecycleStateMachine struct {
	status    LifecycleStatus
	createdAt time.Time
	updatedAt time.Time
	startedAt *time.Time
	stoppedAt *time.Time
	lastError error
	clock     Clock
}

// NewLifecycleStateMachine creates a state machine in STARTING state
func NewLifecycleStateMachine(clock Clock) *LifecycleStateMachine {
	if clock == nil {
		clock = NewRealClock()
	}

	now := clock.Now()
	return &LifecycleStateMachine{
		status:    LifecycleStatusStarting,
		createdAt: now,
		updatedAt: now,
		clock:     clock,
	}
}

// Status returns the current lifecycle status
func (sm *LifecycleStateMachine) Status() LifecycleStatus {
	return sm.status
}

// CreatedAt returns when the entity was created
func (sm *LifecycleStateMachine) CreatedAt() time.Time {
	return sm.createdAt
}

// UpdatedAt returns when the entity was last updated
func (sm *LifecycleStateMachine) UpdatedAt() time.Time {
	return sm.updatedAt
}

// StartedAt returns when execution began (nil if not started)
func (sm *LifecycleStateMachine) StartedAt() *time.Time {
	return sm.startedAt
}

// StoppedAt returns when execution ended (nil while live)
func (sm *LifecycleStateMachine) StoppedAt() *time.Time {
	return sm.stoppedAt
}

// LastError returns the last recorded error, if any
func (sm *LifecycleStateMachine) LastError() error {
	return sm.lastError
}

// Start transitions STARTING → RUNNING
func (sm *LifecycleStateMachine) Start() error {
	if sm.status != LifecycleStatusStarting {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusRunning
	sm.startedAt = &now
	sm.updatedAt = now
	return nil
}

// Stop transitions any live state to STOPPED
func (sm *LifecycleStateMachine) Stop() error {
	if sm.status.IsTerminal() {
		return fmt.Errorf("%w: cannot stop from %s", ErrInvalidTransition, sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusStopped
	sm.stoppedAt = &now
	sm.updatedAt = now
	return nil
}

// Fail transitions any live state to FAILED, recording the error
func (sm *LifecycleStateMachine) Fail(err error) error {
	if sm.status.IsTerminal() {
		return fmt.Errorf("%w: cannot fail from %s", ErrInvalidTransition, sm.status)
	}

	now := sm.clock.Now()
	sm.status = LifecycleStatusFailed
	sm.lastError = err
	sm.stoppedAt = &now
	sm.updatedAt = now
	return nil
}

// IsRunning reports whether the entity is actively executing
func (sm *LifecycleStateMachine) IsRunning() bool {
	return sm.status == LifecycleStatusRunning
}

// IsFinished reports whether the entity reached a terminal state
func (sm *LifecycleStateMachine) IsFinished() bool {
	return sm.status.IsTerminal()
}

// RuntimeDuration returns how long the entity has been (or was) running.
// Returns 0 if it never started.
func (sm *LifecycleStateMachine) RuntimeDuration() time.Duration {
	if sm.startedAt == nil {
		return 0
	}

	endTime := sm.clock.Now()
	if sm.stoppedAt != nil {
		endTime = *sm.stoppedAt
	}

	return endTime.Sub(*sm.startedAt)
}

// UpdateTimestamp bumps updatedAt without a state change
func (sm *LifecycleStateMachine) UpdateTimestamp() {
	sm.updatedAt = sm.clock.Now()
}

// ResetForRestart clears error state and timestamps so the entity can run
// again from STARTING
func (sm *LifecycleStateMachine) ResetForRestart() {
	sm.status = LifecycleStatusStarting
	sm.lastError = nil
	sm.startedAt = nil
	sm.stoppedAt = nil
	sm.updatedAt = sm.clock.Now()
}

// RecoverFromPersistence restores the full lifecycle state from storage.
// Only entity reconstruction code should call this.
func (sm *LifecycleStateMachine) RecoverFromPersistence(
	status LifecycleStatus,
	createdAt, updatedAt time.Time,
	startedAt, stoppedAt *time.Time,
	lastError error,
) {
	sm.status = status
	sm.createdAt = createdAt
	sm.updatedAt = updatedAt
	sm.startedAt = startedAt
	sm.stoppedAt = stoppedAt
	sm.lastError = lastError
}
