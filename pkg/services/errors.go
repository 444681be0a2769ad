// Package services provides the application services consumed by the HTTP
// surface: definition deployment and runtime operations.
package services

import (
	"errors"
	"fmt"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrDefinitionNil       = errors.New("definition cannot be nil")
	ErrInvalidDefinition   = errors.New("invalid definition")
	ErrStepsRequired       = errors.New("definition must have at least one step")
	ErrDuplicateStepID     = errors.New("duplicate step id")
	ErrInvalidStepKind     = errors.New("invalid step kind")
	ErrUnknownLinkEndpoint = errors.New("link references unknown step")
	ErrInvalidGuard        = errors.New("invalid guard expression")
	ErrUserIDRequired      = errors.New("user id cannot be empty")

	// Business Logic Conflicts (409 Conflict).
	ErrTaskNotClaimable = errors.New("task cannot be claimed")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrDefinitionNil) ||
		errors.Is(err, ErrInvalidDefinition) ||
		errors.Is(err, ErrStepsRequired) ||
		errors.Is(err, ErrDuplicateStepID) ||
		errors.Is(err, ErrInvalidStepKind) ||
		errors.Is(err, ErrUnknownLinkEndpoint) ||
		errors.Is(err, ErrInvalidGuard) ||
		errors.Is(err, ErrUserIDRequired)
}

// IsConflictError checks if an error is a business logic conflict that
// should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTaskNotClaimable)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
