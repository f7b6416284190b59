package engine

import (
	"errors"
	"fmt"
)

// CoreError represents a failure detected by the orchestration core.
//
// Core errors include:
//   - Routing failures: unknown or doubly-registered capabilities
//   - Lifecycle violations: calls from the wrong state, use after shutdown
//   - Replay violations: running backwards without a reset
//   - Handle failures: lookup of a destroyed or never-created instance
//
// Every failure is surfaced synchronously to the direct caller. The
// core never swallows an error and never retries; retry is a caller
// policy built on Reset.
type CoreError struct {
	// Code identifies the error category.
	Code CoreErrorCode

	// Message is a human-readable description.
	Message string

	// Capability identifies the routing key (for routing errors).
	Capability string

	// Date is the offending date (for replay errors).
	Date float64
}

// CoreErrorCode categorizes core errors.
type CoreErrorCode string

const (
	// ErrCodeUnknownCapability indicates dispatch to a capability with
	// no registered owner.
	ErrCodeUnknownCapability CoreErrorCode = "UNKNOWN_CAPABILITY"

	// ErrCodeDuplicateCapability indicates two components declared the
	// same capability at registration.
	ErrCodeDuplicateCapability CoreErrorCode = "DUPLICATE_CAPABILITY"

	// ErrCodeInvalidReplayOrder indicates a run target earlier than the
	// current simulation clock.
	ErrCodeInvalidReplayOrder CoreErrorCode = "INVALID_REPLAY_ORDER"

	// ErrCodeCoreInactive indicates an operation on a shut-down core.
	ErrCodeCoreInactive CoreErrorCode = "CORE_INACTIVE"

	// ErrCodeInvalidState indicates a lifecycle call from the wrong state.
	ErrCodeInvalidState CoreErrorCode = "INVALID_STATE"

	// ErrCodeInvalidHandle indicates a lookup of an invalid or
	// destroyed core handle.
	ErrCodeInvalidHandle CoreErrorCode = "INVALID_HANDLE"
)

// Error implements the error interface.
func (e *CoreError) Error() string {
	if e.Capability != "" {
		return fmt.Sprintf("%s: %s (capability=%s)", e.Code, e.Message, e.Capability)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// codeIs reports whether err is a CoreError with the given code,
// unwrapping as needed.
func codeIs(err error, code CoreErrorCode) bool {
	var ce *CoreError
	return errors.As(err, &ce) && ce.Code == code
}

// IsUnknownCapability returns true for dispatches to unowned capabilities.
func IsUnknownCapability(err error) bool { return codeIs(err, ErrCodeUnknownCapability) }

// IsDuplicateCapability returns true for double registrations.
func IsDuplicateCapability(err error) bool { return codeIs(err, ErrCodeDuplicateCapability) }

// IsInvalidReplayOrder returns true for backwards run requests.
func IsInvalidReplayOrder(err error) bool { return codeIs(err, ErrCodeInvalidReplayOrder) }

// IsInactive returns true for operations on a shut-down core.
func IsInactive(err error) bool { return codeIs(err, ErrCodeCoreInactive) }

// IsInvalidState returns true for lifecycle calls from the wrong state.
func IsInvalidState(err error) bool { return codeIs(err, ErrCodeInvalidState) }

// IsInvalidHandle returns true for lookups of dead core handles.
func IsInvalidHandle(err error) bool { return codeIs(err, ErrCodeInvalidHandle) }

// NewUnknownCapabilityError creates a CoreError for an unowned capability.
func NewUnknownCapabilityError(capability string) *CoreError {
	return &CoreError{
		Code:       ErrCodeUnknownCapability,
		Message:    "no component owns this capability",
		Capability: capability,
	}
}

// NewDuplicateCapabilityError creates a CoreError for a double registration.
func NewDuplicateCapabilityError(capability, owner string) *CoreError {
	return &CoreError{
		Code:       ErrCodeDuplicateCapability,
		Message:    fmt.Sprintf("capability already owned by component %s", owner),
		Capability: capability,
	}
}

// NewReplayOrderError creates a CoreError for a backwards run request.
func NewReplayOrderError(requested, current float64) *CoreError {
	return &CoreError{
		Code:    ErrCodeInvalidReplayOrder,
		Message: fmt.Sprintf("requested run date %g is prior to the current date %g; reset first", requested, current),
		Date:    requested,
	}
}

// NewInactiveError creates a CoreError for use after shutdown.
func NewInactiveError(op string) *CoreError {
	return &CoreError{
		Code:    ErrCodeCoreInactive,
		Message: fmt.Sprintf("%s on a shut-down core", op),
	}
}

// NewInvalidStateError creates a CoreError for a lifecycle violation.
func NewInvalidStateError(op string, state State) *CoreError {
	return &CoreError{
		Code:    ErrCodeInvalidState,
		Message: fmt.Sprintf("%s is not valid in state %s", op, state),
	}
}

// NewInvalidHandleError creates a CoreError for a dead handle.
func NewInvalidHandleError(handle int) *CoreError {
	return &CoreError{
		Code:    ErrCodeInvalidHandle,
		Message: fmt.Sprintf("invalid or inactive core handle %d", handle),
	}
}
