package zlabel

import (
	"errors"
	"fmt"
	"strings"
)

// Error is a structured error with operation context. Callers match on the
// Code with errors.Is or IsCode; the remaining fields identify where in the
// tree the failure happened.
type Error struct {
	Op    string    // Operation that failed (e.g. "label_init", "config_sync")
	Vdev  uint64    // Vdev guid (0 if not applicable)
	Slot  int       // Label slot (-1 if not applicable)
	Code  ErrorCode // High-level error category
	Msg   string    // Human-readable message
	Inner error     // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Vdev != 0 {
		parts = append(parts, fmt.Sprintf("vdev=%016x", e.Vdev))
	}
	if e.Slot >= 0 {
		parts = append(parts, fmt.Sprintf("slot=%d", e.Slot))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Inner != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Inner)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("zlabel: %s (%s)", msg, strings.Join(parts, " "))
	}
	return fmt.Sprintf("zlabel: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches two structured errors by Code
func (e *Error) Is(target error) bool {
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents the failure categories this subsystem surfaces
type ErrorCode string

const (
	// ErrCodeDeviceUnavailable: the leaf is not readable or writable
	// (open failure, offline, faulted).
	ErrCodeDeviceUnavailable ErrorCode = "device unavailable"

	// ErrCodeBusy: the leaf already belongs to a pool or spare set.
	ErrCodeBusy ErrorCode = "device busy"

	// ErrCodeNameTooLong: the encoded property list exceeds the fixed
	// phys region.
	ErrCodeNameTooLong ErrorCode = "label too long"

	// ErrCodeEncodingInvalid: the property list failed to decode.
	ErrCodeEncodingInvalid ErrorCode = "encoding invalid"

	// ErrCodeIO: an I/O error propagated from the transport.
	ErrCodeIO ErrorCode = "I/O error"

	// ErrCodeStale: every candidate uberblock failed verification.
	ErrCodeStale ErrorCode = "no valid uberblock"
)

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Slot: -1, Code: code, Msg: msg}
}

// NewVdevError creates a new error scoped to one vdev
func NewVdevError(op string, vdevGuid uint64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Vdev: vdevGuid, Slot: -1, Code: code, Msg: msg}
}

// WrapError wraps an existing error with operation context. A nil inner
// error yields nil.
func WrapError(op string, code ErrorCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ze, ok := inner.(*Error); ok {
		return &Error{Op: op, Vdev: ze.Vdev, Slot: ze.Slot, Code: ze.Code, Msg: ze.Msg, Inner: ze.Inner}
	}
	return &Error{Op: op, Slot: -1, Code: code, Inner: inner}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var ze *Error
	if errors.As(err, &ze) {
		return ze.Code == code
	}
	return false
}
