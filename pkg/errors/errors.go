// Package errors provides typed errors for coverage-status
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates a process configuration error
	ErrConfig ErrorType = iota
	// ErrValidation indicates an administrative input could not be parsed
	ErrValidation
	// ErrPersistence indicates the durable settings record could not be read or written
	ErrPersistence
	// ErrSecret indicates a credential could not be sealed or opened
	ErrSecret
	// ErrState indicates an operation was called in the wrong lifecycle state
	ErrState
)

// CovError is the base error type for all coverage-status errors
type CovError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *CovError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", errorTypeString(e.Type), e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", errorTypeString(e.Type), e.Message)
}

// Unwrap returns the underlying cause
func (e *CovError) Unwrap() error {
	return e.Cause
}

// New creates a new CovError
func New(errType ErrorType, message string, cause error) *CovError {
	return &CovError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *CovError) WithContext(key string, value interface{}) *CovError {
	e.Context[key] = value
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var covErr *CovError
	if err == nil {
		return false
	}
	if errors.As(err, &covErr) {
		return covErr.Type == errType
	}
	return false
}

// IsRetryable returns true if the error is transient and retryable
func IsRetryable(err error) bool {
	var covErr *CovError
	if !errors.As(err, &covErr) {
		return false
	}

	switch covErr.Type {
	case ErrPersistence:
		return true
	default:
		return false
	}
}

func errorTypeString(et ErrorType) string {
	switch et {
	case ErrConfig:
		return "CONFIG"
	case ErrValidation:
		return "VALIDATION"
	case ErrPersistence:
		return "PERSISTENCE"
	case ErrSecret:
		return "SECRET"
	case ErrState:
		return "STATE"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(message string, cause error) *CovError {
	return New(ErrConfig, message, cause)
}

// ValidationError creates a validation error
func ValidationError(message string, cause error) *CovError {
	return New(ErrValidation, message, cause)
}

// PersistenceError creates a persistence error
func PersistenceError(message string, cause error) *CovError {
	return New(ErrPersistence, message, cause)
}

// SecretError creates a secret handling error
func SecretError(message string, cause error) *CovError {
	return New(ErrSecret, message, cause)
}

// StateError creates a lifecycle state error
func StateError(message string, cause error) *CovError {
	return New(ErrState, message, cause)
}
