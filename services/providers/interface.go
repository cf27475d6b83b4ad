package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Provider represents a generative model backend reachable over the network
type Provider interface {
	// Name returns the provider name (e.g., "ollama", "openai")
	Name() string

	// ChatCompletion performs exactly one chat completion request
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// IsAvailable checks if the provider is currently reachable
	IsAvailable(ctx context.Context) bool

	// ListModels asks the backend which models it can serve
	ListModels(ctx context.Context) ([]string, error)

	// SupportsModel reports whether the provider accepts requests for model
	SupportsModel(model string) bool
}

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier (e.g., "llama2", "gpt-4o-mini")
	Model string `json:"model"`

	// Messages in the conversation
	Messages []Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// TopP controls nucleus sampling
	TopP float64 `json:"top_p,omitempty"`

	// Stop sequences
	Stop []string `json:"stop,omitempty"`

	// User identifier for abuse monitoring
	User string `json:"user,omitempty"`

	// Metadata for tracking and logging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text
	Content string `json:"content"`

	// Name is an optional identifier for the message sender
	Name string `json:"name,omitempty"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	ID       string            `json:"id"`
	Model    string            `json:"model"`
	Choices  []Choice          `json:"choices"`
	Usage    Usage             `json:"usage"`
	Provider string            `json:"provider"`
	Latency  time.Duration     `json:"latency"`
	Created  time.Time         `json:"created"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Content returns the text of the first choice, or "" when there is none
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Choice represents a completion choice
type Choice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`

	// FinishReason indicates why the completion finished
	// Values: "stop", "length", "content_filter"
	FinishReason string `json:"finish_reason"`
}

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication (optional for local backends)
	APIKey string

	// BaseURL for the API
	BaseURL string

	// Timeout is a transport-level ceiling; callers still bound each call
	// with their own context deadline
	Timeout time.Duration

	// Models restricts which models the provider claims. Empty means any.
	Models []string

	// Additional headers
	Headers map[string]string
}

// Error codes shared by all adapters
const (
	CodeTimeout         = "TIMEOUT"
	CodeCanceled        = "CANCELED"
	CodeConnection      = "CONNECTION_ERROR"
	CodeModelNotFound   = "MODEL_NOT_FOUND"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServerError     = "SERVER_ERROR"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeRequestError    = "REQUEST_ERROR"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is one of the Code* constants
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// TransportError classifies a failed HTTP round trip. A done context wins over
// whatever the transport reported.
func TransportError(ctx context.Context, provider string, err error) *ProviderError {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return NewProviderError(provider, CodeTimeout, "request deadline exceeded", 0, false, ctx.Err())
	case errors.Is(ctx.Err(), context.Canceled):
		return NewProviderError(provider, CodeCanceled, "request canceled", 0, false, ctx.Err())
	default:
		return NewProviderError(provider, CodeConnection, "HTTP request failed", 0, true, err)
	}
}

// MaxResponseBytes caps how much of a backend response body is read
const MaxResponseBytes = 4 << 20

// ErrResponseTooLarge is the cause of an invalid response whose body exceeds
// MaxResponseBytes
var ErrResponseTooLarge = fmt.Errorf("response body exceeds %d bytes", MaxResponseBytes)

// ReadBody reads a response body of at most MaxResponseBytes. A read failure
// is a transport error; a longer body is an invalid response.
func ReadBody(ctx context.Context, provider string, body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseBytes+1))
	if err != nil {
		return nil, TransportError(ctx, provider, err)
	}
	if len(data) > MaxResponseBytes {
		return nil, NewProviderError(provider, CodeInvalidResponse, "response too large", 0, false, ErrResponseTooLarge)
	}
	return data, nil
}

// StatusError maps a non-200 HTTP status to a ProviderError
func StatusError(provider string, statusCode int, message string) *ProviderError {
	switch {
	case statusCode == 404:
		return NewProviderError(provider, CodeModelNotFound, "model not found: "+message, statusCode, false, nil)
	case statusCode == 400:
		return NewProviderError(provider, CodeInvalidRequest, "invalid request: "+message, statusCode, false, nil)
	case statusCode == 429:
		return NewProviderError(provider, CodeRateLimited, "rate limited: "+message, statusCode, true, nil)
	case statusCode >= 500:
		return NewProviderError(provider, CodeServerError, "server error: "+message, statusCode, true, nil)
	default:
		return NewProviderError(provider, CodeConnection, "unexpected status: "+message, statusCode, false, nil)
	}
}
