// Package status carries the error taxonomy shared by the matching and
// settlement core. Handlers map these classes to HTTP codes; sweeps use
// them to decide whether a failed attempt is retryable.
package status

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed or out-of-range input before any state
// mutation. Terminal, reported as-is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var t *ValidationError
	return errors.As(err, &t)
}

// NotFoundError signals an absent offer/listing/transaction/event. Terminal.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

// ConflictError signals an optimistic-lock loss: the target record is no
// longer in its expected status. Callers may retry with a fresh candidate.
type ConflictError struct {
	Resource string
	ID       string
	Msg      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Msg)
}

func Conflict(resource, id, format string, args ...any) error {
	return &ConflictError{Resource: resource, ID: id, Msg: fmt.Sprintf(format, args...)}
}

func IsConflict(err error) bool {
	var t *ConflictError
	return errors.As(err, &t)
}

// ExternalDependencyError wraps a payment-gateway failure or timeout. The
// settlement unit aborts with no partial state; callers may retry.
type ExternalDependencyError struct {
	Dependency string
	Err        error
}

func (e *ExternalDependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Dependency, e.Err)
}

func (e *ExternalDependencyError) Unwrap() error { return e.Err }

func External(dependency string, err error) error {
	return &ExternalDependencyError{Dependency: dependency, Err: err}
}

func IsExternal(err error) bool {
	var t *ExternalDependencyError
	return errors.As(err, &t)
}

// ReconciliationError marks a capture that succeeded while the store commit
// failed. Resolution must go through an idempotent capture-reference
// re-check, never a blind re-charge.
type ReconciliationError struct {
	CaptureRef string
	Err        error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("capture %s committed at gateway but store commit failed: %v", e.CaptureRef, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func Reconciliation(captureRef string, err error) error {
	return &ReconciliationError{CaptureRef: captureRef, Err: err}
}

func IsReconciliation(err error) bool {
	var t *ReconciliationError
	return errors.As(err, &t)
}

// BusinessRuleError rejects an operation outside its allowed window or
// against an immutable record. Terminal.
type BusinessRuleError struct {
	Msg string
}

func (e *BusinessRuleError) Error() string { return e.Msg }

func BusinessRule(format string, args ...any) error {
	return &BusinessRuleError{Msg: fmt.Sprintf(format, args...)}
}

func IsBusinessRule(err error) bool {
	var t *BusinessRuleError
	return errors.As(err, &t)
}

// Retryable reports whether a sweep or handler should retry the attempt
// (bounded) before surfacing the failure.
func Retryable(err error) bool {
	return IsConflict(err) || IsExternal(err)
}
