// Package dErrors provides typed domain errors with stable codes.
//
// Services return these so transports can translate outcomes into
// protocol-appropriate responses without string matching. Stores return
// sentinel errors (pkg/platform/sentinel) and services wrap them here.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain error.
type Code string

const (
	// Generic codes.
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeConflict     Code = "conflict"

	// Policy rejections. Audited, no funds moved.
	CodePerTransferLimit Code = "per_transfer_limit_exceeded"
	CodeDailyLimit       Code = "daily_limit_exceeded"
	CodeRateLimited      Code = "rate_limited"

	// Staging resolution failures.
	CodeStagingNotFound  Code = "staging_not_found"
	CodeStagingExpired   Code = "staging_expired"
	CodeStagingOwnership Code = "staging_ownership_violation"
	CodeStagingResolved  Code = "staging_already_resolved"

	// Infrastructure failures.
	CodeUpstream    Code = "upstream_execution_error"
	CodePersistence Code = "persistence_error"
)

// Error is a domain error carrying a code, a human-readable message,
// and an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an underlying error with a domain code and message.
// Returns nil if err is nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// GetCode extracts the domain code from an error chain.
// Non-domain errors report CodeInternal.
func GetCode(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain contains a domain error
// with the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ToHTTPStatus maps a domain code to the HTTP status a transport should
// return. Policy and validation failures are client errors; persistence
// and upstream failures are server errors.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeNotFound, CodeStagingNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeStagingOwnership:
		return http.StatusForbidden
	case CodeConflict, CodeStagingResolved:
		return http.StatusConflict
	case CodePerTransferLimit, CodeDailyLimit, CodeStagingExpired:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeUpstream:
		return http.StatusBadGateway
	case CodePersistence, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
