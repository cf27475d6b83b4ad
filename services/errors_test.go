package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNoAnswer, "nothing to say", baseErr)

	assert.Equal(t, ErrorTypeNoAnswer, domainErr.Type)
	assert.Equal(t, "nothing to say", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeBackendTimeout,
				Message: "model backend timed out",
				Err:     context.DeadlineExceeded,
			},
			wantMsg: "backend_timeout: model backend timed out (context deadline exceeded)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "question cannot be empty",
			},
			wantMsg: "validation: question cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("connection refused")
	domainErr := NewDomainError(ErrorTypeBackendUnavailable, "unavailable", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
	assert.ErrorIs(t, domainErr, baseErr)
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeNoAnswer, "model failed and kb empty", nil),
			target: ErrNoAnswerAvailable,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeValidation, "validation", nil),
			target: ErrNoAnswerAvailable,
			want:   false,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("ask: %w", NewDomainError(ErrorTypeValidation, "empty", nil)),
			target: ErrEmptyQuestion,
			want:   true,
		},
		{
			name:   "non domain target",
			err:    NewDomainError(ErrorTypeInternal, "boom", nil),
			target: errors.New("boom"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Type: ErrorTypeNoAnswer, Message: "none"}
	err.WithDetail("backend_error", "backend_timeout").WithDetail("entries", 0)

	require.NotNil(t, err.Details)
	assert.Equal(t, "backend_timeout", err.Details["backend_error"])
	assert.Equal(t, 0, err.Details["entries"])
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"validation", NewDomainError(ErrorTypeValidation, "x", nil), IsValidationError, true},
		{"validation negative", NewDomainError(ErrorTypeInternal, "x", nil), IsValidationError, false},
		{"not found", NewDomainError(ErrorTypeNotFound, "x", nil), IsNotFoundError, true},
		{"no answer", NewDomainError(ErrorTypeNoAnswer, "x", nil), IsNoAnswerError, true},
		{"canceled", NewDomainError(ErrorTypeCanceled, "x", context.Canceled), IsCanceledError, true},
		{"internal", WrapInternal("x", errors.New("db")), IsInternalError, true},
		{"timeout is backend", NewDomainError(ErrorTypeBackendTimeout, "x", nil), IsBackendError, true},
		{"unavailable is backend", NewDomainError(ErrorTypeBackendUnavailable, "x", nil), IsBackendError, true},
		{"invalid response is backend", NewDomainError(ErrorTypeBackendInvalidResponse, "x", nil), IsBackendError, true},
		{"rate limited is backend", NewDomainError(ErrorTypeBackendRateLimited, "x", nil), IsBackendError, true},
		{"no answer is not backend", NewDomainError(ErrorTypeNoAnswer, "x", nil), IsBackendError, false},
		{"plain error", errors.New("plain"), IsValidationError, false},
		{"nil error", nil, IsNoAnswerError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeNoAnswer, GetErrorType(fmt.Errorf("wrap: %w", ErrNoAnswerAvailable)))
	assert.Equal(t, ErrorType(""), GetErrorType(errors.New("plain")))
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "bad", nil).WithDetail("field", "question")
	assert.Equal(t, map[string]interface{}{"field": "question"}, GetErrorDetails(err))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}
