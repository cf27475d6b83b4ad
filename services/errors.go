package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation             ErrorType = "validation"
	ErrorTypeNotFound               ErrorType = "not_found"
	ErrorTypeBackendTimeout         ErrorType = "backend_timeout"
	ErrorTypeBackendUnavailable     ErrorType = "backend_unavailable"
	ErrorTypeBackendInvalidResponse ErrorType = "backend_invalid_response"
	ErrorTypeBackendRateLimited     ErrorType = "backend_rate_limited"
	ErrorTypeNoAnswer               ErrorType = "no_answer_available"
	ErrorTypeCanceled               ErrorType = "canceled"
	ErrorTypeInternal               ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is comparisons. Only the Type is compared, so never
// mutate these; build fresh errors with NewDomainError instead.
var (
	ErrEmptyQuestion       = NewDomainError(ErrorTypeValidation, "question cannot be empty", nil)
	ErrInvalidThreshold    = NewDomainError(ErrorTypeValidation, "threshold must be in (0, 1]", nil)
	ErrEntryNotFound       = NewDomainError(ErrorTypeNotFound, "knowledge entry not found", nil)
	ErrInteractionNotFound = NewDomainError(ErrorTypeNotFound, "interaction not found", nil)

	ErrBackendTimeout         = NewDomainError(ErrorTypeBackendTimeout, "model backend timed out", nil)
	ErrBackendUnavailable     = NewDomainError(ErrorTypeBackendUnavailable, "model backend unavailable", nil)
	ErrBackendInvalidResponse = NewDomainError(ErrorTypeBackendInvalidResponse, "model backend returned an invalid response", nil)
	ErrBackendRateLimited     = NewDomainError(ErrorTypeBackendRateLimited, "model backend rate limited the request", nil)

	ErrNoAnswerAvailable = NewDomainError(ErrorTypeNoAnswer, "no answer available", nil)
	ErrCanceled          = NewDomainError(ErrorTypeCanceled, "request canceled", nil)
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsNoAnswerError checks if an error means neither the model nor the
// knowledge base could produce an answer
func IsNoAnswerError(err error) bool {
	return hasType(err, ErrorTypeNoAnswer)
}

// IsCanceledError checks if an error is a caller cancellation
func IsCanceledError(err error) bool {
	return hasType(err, ErrorTypeCanceled)
}

// IsBackendError checks if an error is any model backend failure
func IsBackendError(err error) bool {
	switch GetErrorType(err) {
	case ErrorTypeBackendTimeout, ErrorTypeBackendUnavailable,
		ErrorTypeBackendInvalidResponse, ErrorTypeBackendRateLimited:
		return true
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
