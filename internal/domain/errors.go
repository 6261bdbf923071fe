package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a referenced profile or user does not exist.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrInvalidProfile indicates a profile missing required identity fields
// reached the scorer. This is an upstream data-integrity bug: it is logged
// and surfaced as a server error, never retried.
type ErrInvalidProfile struct {
	ID     string
	Reason string
}

func (e *ErrInvalidProfile) Error() string {
	return fmt.Sprintf("invalid profile %q: %s", e.ID, e.Reason)
}

// ErrQuotaExceeded indicates the usage-limit collaborator declined an action.
// The caller may retry after RetryAfter.
type ErrQuotaExceeded struct {
	Action     string
	RetryAfter time.Duration
}

func (e *ErrQuotaExceeded) Error() string {
	return fmt.Sprintf("quota exceeded for %s, retry after %s", e.Action, e.RetryAfter)
}

// ErrIndexUnavailable indicates the search index or cache backend is
// unreachable. Recoverable: callers fail open to a direct store scan.
type ErrIndexUnavailable struct {
	Err error
}

func (e *ErrIndexUnavailable) Error() string {
	return fmt.Sprintf("search index unavailable: %v", e.Err)
}

func (e *ErrIndexUnavailable) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// AsTimeout converts errors that stem from an expired or cancelled context
// into ErrTimeout for the named operation. Any other error passes through
// unchanged. Services call this on their return path so a deadline that
// expires mid-flight keeps its place in the error taxonomy.
func AsTimeout(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ErrTimeout{Operation: operation}
	}
	return err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrExternalService indicates a failure in an external collaborator call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates a missing or invalid admin token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
