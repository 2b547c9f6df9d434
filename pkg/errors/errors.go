// Package errors provides structured error types for schemforge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across CLI and API
//   - Machine-readable error codes for programmatic handling
//   - A clean split between fatal errors (abort the run) and recorded
//     conditions (annotated in the run report)
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - PARSE_*: schematic input failures (fatal)
//   - VALIDATION_*: netlist integrity failures after inference (fatal)
//   - MATERIALIZATION_*: board file generation failures (fatal)
//   - ORACLE_*, PLACEMENT_*, ROUTING_*: degraded conditions (recorded,
//     non-fatal; the pipeline proceeds and surfaces them in the report)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeDuplicateComponent, "duplicate reference %q", ref)
//	if errors.Is(err, errors.ErrCodeDuplicateComponent) {
//	    // Handle parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeMaterialization, cause, "write board for %s", title)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Parse errors (fatal, abort the run)
	ErrCodeMalformedInput     Code = "PARSE_MALFORMED_INPUT"
	ErrCodeDuplicateComponent Code = "PARSE_DUPLICATE_COMPONENT"
	ErrCodeEmptyComponent     Code = "PARSE_EMPTY_COMPONENT"
	ErrCodeInvalidRole        Code = "PARSE_INVALID_ROLE"
	ErrCodeUnknownPin         Code = "PARSE_UNKNOWN_PIN"

	// Validation errors (fatal, abort the run)
	ErrCodeUnassignedPin    Code = "VALIDATION_UNASSIGNED_PIN"
	ErrCodeEmptyNet         Code = "VALIDATION_EMPTY_NET"
	ErrCodeComponentShort   Code = "VALIDATION_COMPONENT_SHORT"
	ErrCodeRoleConflict     Code = "VALIDATION_ROLE_CONFLICT"
	ErrCodeDoubleAssigned   Code = "VALIDATION_DOUBLE_ASSIGNED"
	ErrCodeDeclaredConflict Code = "VALIDATION_DECLARED_CONFLICT"

	// Degraded conditions (non-fatal, recorded in the run report)
	ErrCodeOracleDegraded       Code = "ORACLE_DEGRADED"
	ErrCodePlacementUnconverged Code = "PLACEMENT_UNCONVERGED"
	ErrCodeRoutingUnresolved    Code = "ROUTING_UNRESOLVED"

	// Materialization errors (fatal, abort the run)
	ErrCodeMaterialization  Code = "MATERIALIZATION_ERROR"
	ErrCodeUnknownFootprint Code = "MATERIALIZATION_UNKNOWN_FOOTPRINT"

	// Generic
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeTimeout      Code = "TIMEOUT"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsFatal reports whether err carries a code that aborts a pipeline run.
// Degraded conditions (oracle outages, unconverged placement, unresolved
// routes) are recorded in the run report instead of aborting.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeOracleDegraded, ErrCodePlacementUnconverged, ErrCodeRoutingUnresolved:
		return false
	case "":
		// Unstructured errors are treated as fatal internal failures.
		return err != nil
	default:
		return true
	}
}
