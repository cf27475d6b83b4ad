package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/services/providers"
)

// stubProvider answers with a fixed response or error. When block is set it
// sleeps without looking at its context.
type stubProvider struct {
	name      string
	content   string
	err       error
	block     time.Duration
	available bool
	models    []string

	mu       sync.Mutex
	requests []*providers.ChatRequest
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.block > 0 {
		time.Sleep(s.block)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &providers.ChatResponse{
		Model:    req.Model,
		Provider: s.name,
		Choices:  []providers.Choice{{Message: providers.Message{Role: providers.RoleAssistant, Content: s.content}}},
		Usage:    providers.Usage{TotalTokens: 42},
	}, nil
}

func (s *stubProvider) IsAvailable(ctx context.Context) bool { return s.available }

func (s *stubProvider) ListModels(ctx context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.models, nil
}

func (s *stubProvider) SupportsModel(model string) bool { return true }

func (s *stubProvider) lastRequest() *providers.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

var testDefaults = ModelOptions{
	Model:        "llama2",
	Temperature:  0.1,
	MaxTokens:    500,
	SystemPrompt: "You are a helpful customer service assistant.",
}

func newGateway(t *testing.T, p providers.Provider) *Gateway {
	t.Helper()
	registry := providers.NewRegistry()
	require.NoError(t, registry.RegisterProvider(p))
	return New(registry, testDefaults, zap.NewNop())
}

func TestGenerate_Success(t *testing.T) {
	stub := &stubProvider{name: "ollama", content: "  Click 'Forgot Password'.  "}
	gw := newGateway(t, stub)

	answer, err := gw.Generate(context.Background(), "How do I reset my password?", ModelOptions{
		Context: "To reset your password, go to the login page.",
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "Click 'Forgot Password'.", answer.Text)
	assert.Equal(t, "llama2", answer.Model)
	assert.Equal(t, "ollama", answer.Provider)
	assert.Equal(t, 42, answer.Usage.TotalTokens)
	assert.Equal(t, 1, stub.calls())

	req := stub.lastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "llama2", req.Model)
	assert.Equal(t, 0.1, req.Temperature)
	assert.Equal(t, 500, req.MaxTokens)
	require.Len(t, req.Messages, 3)
	assert.Equal(t, providers.Message{Role: providers.RoleSystem, Content: testDefaults.SystemPrompt}, req.Messages[0])
	assert.Equal(t, "Context information: To reset your password, go to the login page.", req.Messages[1].Content)
	assert.Equal(t, providers.Message{Role: providers.RoleUser, Content: "How do I reset my password?"}, req.Messages[2])
}

func TestGenerate_OverridesDefaults(t *testing.T) {
	stub := &stubProvider{name: "ollama", content: "ok"}
	gw := newGateway(t, stub)

	_, err := gw.Generate(context.Background(), "q", ModelOptions{
		Model:        "mistral",
		Temperature:  0.7,
		MaxTokens:    64,
		SystemPrompt: "custom",
	}, time.Second)

	require.NoError(t, err)
	req := stub.lastRequest()
	assert.Equal(t, "mistral", req.Model)
	assert.Equal(t, 0.7, req.Temperature)
	assert.Equal(t, 64, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "custom", req.Messages[0].Content)
}

func TestGenerate_WatchdogFiresWhenProviderIgnoresContext(t *testing.T) {
	stub := &stubProvider{name: "ollama", content: "late", block: 500 * time.Millisecond}
	gw := newGateway(t, stub)

	start := time.Now()
	_, err := gw.Generate(context.Background(), "q", ModelOptions{}, 30*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 400*time.Millisecond)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", providers.NewProviderError("ollama", providers.CodeRateLimited, "busy", 429, true, nil), ErrRateLimited},
		{"server error", providers.NewProviderError("ollama", providers.CodeServerError, "oom", 500, true, nil), ErrUnavailable},
		{"connection", providers.NewProviderError("ollama", providers.CodeConnection, "refused", 0, true, nil), ErrUnavailable},
		{"model missing", providers.NewProviderError("ollama", providers.CodeModelNotFound, "llama2", 404, false, nil), ErrUnavailable},
		{"bad request", providers.NewProviderError("ollama", providers.CodeInvalidRequest, "bad", 400, false, nil), ErrUnavailable},
		{"malformed", providers.NewProviderError("ollama", providers.CodeInvalidResponse, "not json", 200, false, nil), ErrInvalidResponse},
		{"provider timeout", providers.NewProviderError("ollama", providers.CodeTimeout, "slow", 0, false, context.DeadlineExceeded), ErrTimeout},
		{"bare deadline", context.DeadlineExceeded, ErrTimeout},
		{"unknown", errors.New("boom"), ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newGateway(t, &stubProvider{name: "ollama", err: tt.err})

			_, err := gw.Generate(context.Background(), "q", ModelOptions{}, time.Second)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var be *BackendError
			require.True(t, errors.As(err, &be))
			assert.Equal(t, "ollama", be.Provider)
		})
	}
}

func TestGenerate_EmptyAnswerIsInvalidResponse(t *testing.T) {
	gw := newGateway(t, &stubProvider{name: "ollama", content: "   "})

	_, err := gw.Generate(context.Background(), "q", ModelOptions{}, time.Second)

	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGenerate_NoProvider(t *testing.T) {
	gw := New(providers.NewRegistry(), testDefaults, nil)

	_, err := gw.Generate(context.Background(), "q", ModelOptions{}, time.Second)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, providers.ErrProviderNotFound)
}

func TestGenerate_CallerCancellation(t *testing.T) {
	stub := &stubProvider{name: "ollama", content: "late", block: 300 * time.Millisecond}
	gw := newGateway(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := gw.Generate(ctx, "q", ModelOptions{}, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, KindOf(err))
}

func TestGenerate_AlreadyCanceled(t *testing.T) {
	stub := &stubProvider{name: "ollama", content: "ok"}
	gw := newGateway(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Generate(ctx, "q", ModelOptions{}, time.Second)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stub.calls())
}

func TestGenerate_NonPositiveDeadline(t *testing.T) {
	stub := &stubProvider{name: "ollama", content: "ok"}
	gw := newGateway(t, stub)

	_, err := gw.Generate(context.Background(), "q", ModelOptions{}, 0)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, stub.calls())
}

func TestAvailableAndModels(t *testing.T) {
	stub := &stubProvider{name: "ollama", available: true, models: []string{"llama2:latest"}}
	gw := newGateway(t, stub)

	assert.True(t, gw.Available(context.Background()))
	models, err := gw.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama2:latest"}, models)
	assert.Equal(t, "llama2", gw.DefaultModel())

	empty := New(providers.NewRegistry(), testDefaults, nil)
	assert.False(t, empty.Available(context.Background()))
	_, err = empty.Models(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBackendError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &BackendError{Kind: KindUnavailable, Provider: "ollama", Message: "call failed", Cause: cause}

	assert.Equal(t, "ollama: model backend unavailable: call failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.True(t, err.Retryable())
	assert.True(t, ErrRateLimited.Retryable())
	assert.False(t, ErrTimeout.Retryable())
	assert.False(t, ErrInvalidResponse.Retryable())
	assert.Equal(t, "model backend timeout: deadline exceeded", ErrTimeout.Error())
	assert.Equal(t, KindRateLimited, KindOf(ErrRateLimited))
	assert.Equal(t, Kind(""), KindOf(cause))
}
