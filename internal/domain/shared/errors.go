package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across layers. Wrap with fmt.Errorf("...: %w", err)
// and check with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrMissingResource   = errors.New("missing resource")
)

// ValidationError reports a rejected command input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err is (or wraps) a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InsufficientFuelError reports a fuel-infeasible travel request
type InsufficientFuelError struct {
	Required  int
	Available int
}

func (e *InsufficientFuelError) Error() string {
	return fmt.Sprintf("insufficient fuel: need %d, have %d", e.Required, e.Available)
}

func NewInsufficientFuelError(required, available int) *InsufficientFuelError {
	return &InsufficientFuelError{Required: required, Available: available}
}

// ShipAssignmentError reports a failed assignment operation
type ShipAssignmentError struct {
	ShipSymbol  string
	ContainerID string
	Message     string
}

func (e *ShipAssignmentError) Error() string {
	return e.Message
}

// NewShipAlreadyAssignedError reports an assignment conflict: the ship is
// actively held by another container.
func NewShipAlreadyAssignedError(shipSymbol, currentContainerID string) *ShipAssignmentError {
	return &ShipAssignmentError{
		ShipSymbol:  shipSymbol,
		ContainerID: currentContainerID,
		Message:     fmt.Sprintf("ship %s is already assigned to container %s", shipSymbol, currentContainerID),
	}
}
