package engine

import "errors"

var (
	// ErrDefinitionInactive is returned when starting an instance of a
	// definition that has been deactivated.
	ErrDefinitionInactive = errors.New("process definition is not active")
	// ErrInstanceNotActive is returned when a task completion targets an
	// instance that is no longer active.
	ErrInstanceNotActive = errors.New("process instance is not active")
	// ErrInstanceNotSuspended is returned when resuming an instance that
	// is not suspended.
	ErrInstanceNotSuspended = errors.New("process instance is not suspended")
	// ErrTaskNotOpen is returned when completing a task that was already
	// closed.
	ErrTaskNotOpen = errors.New("task is not open")
)
