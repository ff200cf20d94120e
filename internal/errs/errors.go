package errs

import (
	"errors"
	"fmt"
)

// Typed domain errors for membership operations. Handlers map each type to a
// distinct HTTP status and application code; the coordinator never retries any
// of them. Store infrastructure failures (connectivity, timeouts) are NOT part
// of this taxonomy and propagate as plain errors.

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a missing team, join request, or user.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// ForbiddenError reports a failed role or ownership check.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

// ConflictError reports a duplicate membership, invite, or join request.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// CapacityExceededError reports that a mutation would exceed a team's
// max_members ceiling.
type CapacityExceededError struct {
	TeamID uint
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("team %d is at member capacity", e.TeamID)
}

// InvalidStateError reports acting on a non-pending join request, violating
// the last-owner invariant, or mutating an archived team.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string { return e.Msg }

// Constructors

func Validation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func NotFound(resource string) error {
	return &NotFoundError{Resource: resource}
}

func Forbidden(format string, args ...interface{}) error {
	return &ForbiddenError{Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

func CapacityExceeded(teamID uint) error {
	return &CapacityExceededError{TeamID: teamID}
}

func InvalidState(format string, args ...interface{}) error {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// Predicates

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsForbidden(err error) bool {
	var e *ForbiddenError
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ConflictError
	return errors.As(err, &e)
}

func IsCapacityExceeded(err error) bool {
	var e *CapacityExceededError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e *InvalidStateError
	return errors.As(err, &e)
}
