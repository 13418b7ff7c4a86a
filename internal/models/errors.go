package models

import (
	"errors"
	"fmt"
)

// UserError is an invalid or out-of-state request. It is reported back to the
// requester and leaves state untouched.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

// UserErrorf builds a UserError.
func UserErrorf(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// OperationalError wraps a persistence or notification failure.
type OperationalError struct {
	Op  string
	Err error
}

func (e *OperationalError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *OperationalError) Unwrap() error { return e.Err }

// Operational wraps err, or returns nil when err is nil.
func Operational(op string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OperationalError
	if errors.As(err, &oe) {
		return err
	}
	return &OperationalError{Op: op, Err: err}
}

// InvariantViolation means the tournament cannot proceed as modelled: pairing is
// impossible, a bracket topology is unknown, or a match lacks an expected field.
type InvariantViolation struct {
	Msg string
}

func (e *InvariantViolation) Error() string { return "invariant violation: " + e.Msg }

// Invariantf builds an InvariantViolation.
func Invariantf(format string, args ...any) error {
	return &InvariantViolation{Msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err is (or wraps) a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsInvariant reports whether err is (or wraps) an InvariantViolation.
func IsInvariant(err error) bool {
	var iv *InvariantViolation
	return errors.As(err, &iv)
}

// IsOperational reports whether err is (or wraps) an OperationalError.
func IsOperational(err error) bool {
	var oe *OperationalError
	return errors.As(err, &oe)
}
