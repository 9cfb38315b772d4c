// Package errors provides the standardized error taxonomy for the
// conversation core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input rejection: malformed manual selection, unknown facet or value.
	ErrCodeInputRejected ErrorCode = "INPUT_REJECTED"

	// Collaborator failures from the structured-extraction service.
	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout ErrorCode = "EXTRACTION_TIMEOUT"

	// Data inconsistency: a fully answered assignment that matches no
	// catalog product. Authoring bug, not a runtime input error.
	ErrCodeCatalogInconsistent ErrorCode = "CATALOG_INCONSISTENT"

	// Durable store failures. Always best-effort at call sites.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// Operations issued before the session finished booting.
	ErrCodeNotReady ErrorCode = "NOT_READY"

	// Handover notification delivery failures.
	ErrCodeNotifyFailed ErrorCode = "NOTIFY_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// New creates a StandardError with the given code and message.
func New(code ErrorCode, message string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable(code),
		Timestamp: time.Now(),
	}
}

// Wrap creates a StandardError around an underlying cause.
func Wrap(code ErrorCode, message string, cause error) *StandardError {
	e := New(code, message)
	e.cause = cause
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// Code extracts the error code from err, or empty if it is not a
// StandardError.
func Code(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return Code(err) == code
}

func retryable(code ErrorCode) bool {
	switch code {
	case ErrCodeExtractionTimeout, ErrCodeStoreUnavailable, ErrCodeNotifyFailed:
		return true
	default:
		return false
	}
}
