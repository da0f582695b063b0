// Package domainerrors provides typed domain errors for validation and
// business-rule failures. Stores return sentinel errors (pkg/platform/sentinel)
// for infrastructure facts; services translate those into domain errors here so
// the transport layer can map codes to HTTP statuses without string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the category of a domain error.
type Code string

// Generic codes shared across features.
const (
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeConflict           Code = "conflict"
	CodeInternal           Code = "internal"
	CodeInvariantViolation Code = "invariant_violation"
)

// Compliance-specific codes. Each maps to a distinct user-facing failure so
// callers can render a precise message.
const (
	CodePermissionDenied       Code = "permission_denied"
	CodeOrphanedResellerClient Code = "orphaned_reseller_client"
	CodeDuplicateCode          Code = "duplicate_code"
	CodeInvalidCodeFormat      Code = "invalid_code_format"
	CodeNoCostDeclared         Code = "no_cost_declared"
	CodeMonthAlreadyAllocated  Code = "month_already_allocated"
	CodeBudgetExceeded         Code = "budget_exceeded"
	CodeStorageConflict        Code = "storage_conflict"
)

// Error is a domain error with a machine-readable code, a human-readable
// message, and optional structured details (e.g. the conflicting scope of a
// duplicate code).
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target is a domain error with the same code, so
// errors.Is(err, domainerrors.New(code, "")) works across wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a domain code and message. The
// underlying error stays reachable through errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// With attaches a structured detail and returns the error for chaining:
//
//	return dErrors.New(dErrors.CodeDuplicateCode, "group code already in use").
//		With("organization_id", orgID).With("year", year)
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details[key] = value
	return e
}

// HasCode reports whether err or any error it wraps carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf extracts the domain code from err, defaulting to CodeInternal for
// errors that did not originate in the domain layer.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return CodeInternal
	}
	return e.Code
}

// MessageOf returns the human-readable message of err, or "" for errors that
// did not originate in the domain layer.
func MessageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Message
}

// DetailsOf returns the structured details of err, or nil.
func DetailsOf(err error) map[string]any {
	var e *Error
	if !errors.As(err, &e) {
		return nil
	}
	return e.Details
}
