package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/helpdesk-orchestrator/services/providers"
)

// Kind classifies a model backend failure
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindUnavailable     Kind = "unavailable"
	KindInvalidResponse Kind = "invalid_response"
	KindRateLimited     Kind = "rate_limited"
)

// BackendError is the only error type Generate returns besides caller
// cancellation
type BackendError struct {
	Kind     Kind
	Provider string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	prefix := "model backend " + string(e.Kind)
	if e.Provider != "" {
		prefix = e.Provider + ": " + prefix
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *BackendError) Unwrap() error {
	return e.Cause
}

// Is matches any BackendError of the same Kind
func (e *BackendError) Is(target error) bool {
	t, ok := target.(*BackendError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether another attempt could succeed
func (e *BackendError) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindRateLimited
}

var (
	ErrTimeout         = &BackendError{Kind: KindTimeout, Message: "deadline exceeded"}
	ErrUnavailable     = &BackendError{Kind: KindUnavailable, Message: "backend unavailable"}
	ErrInvalidResponse = &BackendError{Kind: KindInvalidResponse, Message: "invalid response"}
	ErrRateLimited     = &BackendError{Kind: KindRateLimited, Message: "rate limited"}
)

// KindOf returns the Kind of a BackendError, or "" for anything else
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// classify converts a provider failure into a BackendError. A canceled caller
// context is returned as context.Canceled.
func classify(ctx context.Context, provider string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return context.Canceled
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		kind := KindUnavailable
		switch provErr.Code {
		case providers.CodeTimeout:
			kind = KindTimeout
		case providers.CodeRateLimited:
			kind = KindRateLimited
		case providers.CodeInvalidResponse:
			kind = KindInvalidResponse
		case providers.CodeCanceled:
			if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				kind = KindTimeout
			}
		}
		return &BackendError{Kind: kind, Provider: provider, Message: provErr.Message, Cause: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &BackendError{Kind: KindTimeout, Provider: provider, Message: "deadline exceeded", Cause: err}
	}

	return &BackendError{Kind: KindUnavailable, Provider: provider, Message: "call failed", Cause: err}
}
