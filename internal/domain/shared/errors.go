// Package shared contains common domain types and errors that are used
// across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Store errors
	ErrPersistence        = errors.New("persistence error")
	ErrCounterUnavailable = errors.New("counter store unavailable")
	ErrReconciliation     = errors.New("reconciliation failed")

	// External service errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "event", "stats", "achievement"
	Op      string // Operation that failed, e.g., "Append", "Increment"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Event domain errors
var (
	ErrEventNotFound     = NewDomainError("event", "Find", ErrNotFound, "event not found")
	ErrInvalidUserID     = NewDomainError("event", "Validate", ErrInvalidID, "user id must be positive")
	ErrUnknownEventType  = NewDomainError("event", "Validate", ErrInvalidInput, "unknown event type")
	ErrInvalidDetails    = NewDomainError("event", "Validate", ErrInvalidInput, "invalid event details")
	ErrEventNotPersisted = NewDomainError("event", "Append", ErrPersistence, "event was not persisted")
)

// Stats domain errors
var (
	ErrCounterIncrement = NewDomainError("stats", "Increment", ErrCounterUnavailable, "failed to apply counter delta")
	ErrCounterRead      = NewDomainError("stats", "Get", ErrCounterUnavailable, "failed to read counter")
	ErrCounterRebuild   = NewDomainError("stats", "Rebuild", ErrReconciliation, "failed to rebuild counter from event log")
)

// Achievement domain errors
var (
	ErrAchievementExists   = NewDomainError("achievement", "Unlock", ErrAlreadyExists, "achievement already unlocked")
	ErrInvalidAchievement  = NewDomainError("achievement", "Validate", ErrInvalidInput, "invalid achievement name")
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsCounterUnavailable checks if the error comes from an unreachable
// counter store. Such failures are recoverable: the event log remains
// authoritative and the delta is re-applied by retry or reconciliation.
func IsCounterUnavailable(err error) bool {
	return errors.Is(err, ErrCounterUnavailable)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCounterUnavailable) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
