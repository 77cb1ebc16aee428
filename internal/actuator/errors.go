package actuator

import "errors"

// Domain errors for the actuator package.
var (
	// ErrNoState is returned when a command needs the actual state but the
	// hub has not reported the entity yet.
	ErrNoState = errors.New("actuator: entity state not yet known")

	// ErrNotAllowed is returned when a convenience command is not valid in
	// the entity's current state.
	ErrNotAllowed = errors.New("actuator: command not allowed in current state")

	// ErrSubmit wraps transport failures while submitting a command.
	ErrSubmit = errors.New("actuator: submitting command failed")
)
