package unit

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes unit errors.
type ErrorCode string

const (
	// ErrCodeUnitMismatch indicates arithmetic or assignment between
	// incompatible units.
	ErrCodeUnitMismatch ErrorCode = "UNIT_MISMATCH"

	// ErrCodeUnknownUnit indicates a unit name outside the closed set.
	ErrCodeUnknownUnit ErrorCode = "UNKNOWN_UNIT"
)

// Error is a typed unit failure. It carries the offending units so the
// binding layer can reconstruct the cause from the message alone.
type Error struct {
	Code    ErrorCode
	Message string
	From    Unit
	To      Unit
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == ErrCodeUnitMismatch {
		return fmt.Sprintf("%s: %s (%s vs %s)", e.Code, e.Message, e.From, e.To)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMismatch returns true if err is a unit mismatch, unwrapping as needed.
func IsMismatch(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == ErrCodeUnitMismatch
}

// IsUnknown returns true if err is an unknown-unit failure.
func IsUnknown(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Code == ErrCodeUnknownUnit
}

func mismatch(op string, from, to Unit) *Error {
	return &Error{
		Code:    ErrCodeUnitMismatch,
		Message: fmt.Sprintf("cannot %s across incompatible units", op),
		From:    from,
		To:      to,
	}
}
