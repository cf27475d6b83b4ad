package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/upb/helpdesk-orchestrator/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

var defaultModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}

// OpenAIAdapter implements the Provider interface for OpenAI
type OpenAIAdapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
	models     map[string]bool
}

// NewOpenAIAdapter creates a new OpenAI adapter
func NewOpenAIAdapter(config providers.ProviderConfig) *OpenAIAdapter {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	if len(config.Models) == 0 {
		config.Models = defaultModels
	}

	adapter := &OpenAIAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		models: make(map[string]bool, len(config.Models)),
	}
	for _, m := range config.Models {
		adapter.models[m] = true
	}

	return adapter
}

// Name returns the provider name
func (a *OpenAIAdapter) Name() string {
	return "openai"
}

// ChatCompletion performs a single chat completion request. Retries belong to
// the caller.
func (a *OpenAIAdapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	if !a.SupportsModel(req.Model) {
		return nil, providers.NewProviderError(a.Name(), providers.CodeModelNotFound, "model "+req.Model+" is not supported by OpenAI provider", 0, false, nil)
	}

	reqBody, err := json.Marshal(BuildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequestError, "Failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequestError, "Failed to create request", 0, false, err)
	}
	a.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(ctx, a.Name(), err)
	}
	defer httpResp.Body.Close()

	respBody, err := providers.ReadBody(ctx, a.Name(), httpResp.Body)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, providers.StatusError(a.Name(), httpResp.StatusCode, ErrorMessage(respBody))
	}

	var openaiResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "Failed to unmarshal response", httpResp.StatusCode, false, err)
	}
	if len(openaiResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "response contained no choices", httpResp.StatusCode, false, nil)
	}

	return openaiResp.ToUnified(a.Name(), req, time.Since(startTime)), nil
}

// IsAvailable checks if the provider is currently available
func (a *OpenAIAdapter) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+"/models", nil)
	if err != nil {
		return false
	}
	a.setHeaders(req)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the configured models
func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]string, error) {
	models := make([]string, len(a.config.Models))
	copy(models, a.config.Models)
	return models, nil
}

// SupportsModel checks if a model is configured for this adapter
func (a *OpenAIAdapter) SupportsModel(model string) bool {
	return a.models[model]
}

func (a *OpenAIAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
}
