// Package ollama adapts a local Ollama server to the providers.Provider
// interface. Chat goes through the OpenAI-compatible endpoint; health and
// model discovery use the native /api/tags endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/upb/helpdesk-orchestrator/services/providers"
	"github.com/upb/helpdesk-orchestrator/services/providers/openai"
)

const (
	ProviderName   = "ollama"
	DefaultBaseURL = "http://localhost:11434"

	chatPath = "/v1/chat/completions"
	tagsPath = "/api/tags"

	healthTimeout = 5 * time.Second
)

// Adapter implements providers.Provider for Ollama
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *http.Client
}

// chatRequest is the OpenAI shape plus the native options block Ollama reads
// for generation limits.
type chatRequest struct {
	*openai.ChatCompletionRequest
	Options *chatOptions `json:"options,omitempty"`
}

type chatOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// nativeChatResponse is the /api/chat shape some Ollama versions return
type nativeChatResponse struct {
	Model     string          `json:"model"`
	CreatedAt string          `json:"created_at"`
	Message   *openai.Message `json:"message"`
	Done      bool            `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewAdapter creates a new Ollama adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return ProviderName
}

// ChatCompletion sends one chat request. Timeouts come from ctx.
func (a *Adapter) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	wire := chatRequest{ChatCompletionRequest: openai.BuildRequest(req)}
	// Ollama treats an absent temperature as its own default, so send 0 explicitly.
	temperature := req.Temperature
	wire.Temperature = &temperature
	if req.MaxTokens > 0 {
		wire.Options = &chatOptions{NumPredict: req.MaxTokens}
	}

	reqBody, err := json.Marshal(wire)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequestError, "Failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+chatPath, bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeRequestError, "Failed to create request", 0, false, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	a.setHeaders(httpReq)

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
		msg := openai.ErrorMessage(respBody)
		if httpResp.StatusCode == http.StatusNotFound {
			msg = req.Model
		}
		return nil, providers.StatusError(a.Name(), httpResp.StatusCode, msg)
	}

	return a.decodeChat(respBody, req, time.Since(startTime))
}

func (a *Adapter) decodeChat(body []byte, req *providers.ChatRequest, latency time.Duration) (*providers.ChatResponse, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "Failed to parse response JSON", http.StatusOK, false, err)
	}

	if raw, ok := probe["choices"]; ok && len(raw) > 2 {
		var compat openai.ChatCompletionResponse
		if err := json.Unmarshal(body, &compat); err != nil {
			return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "Failed to parse response JSON", http.StatusOK, false, err)
		}
		if len(compat.Choices) > 0 {
			return compat.ToUnified(a.Name(), req, latency), nil
		}
	}

	if _, ok := probe["message"]; ok {
		var native nativeChatResponse
		if err := json.Unmarshal(body, &native); err != nil || native.Message == nil {
			return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "Invalid response format from Ollama API", http.StatusOK, false, err)
		}
		model := native.Model
		if model == "" {
			model = req.Model
		}
		role := native.Message.Role
		if role == "" {
			role = providers.RoleAssistant
		}
		return &providers.ChatResponse{
			Model:    model,
			Provider: a.Name(),
			Choices: []providers.Choice{{
				Message:      providers.Message{Role: role, Content: native.Message.Content},
				FinishReason: "stop",
			}},
			Latency:  latency,
			Created:  time.Now(),
			Metadata: req.Metadata,
		}, nil
	}

	return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "Invalid response format from Ollama API", http.StatusOK, false, nil)
}

// IsAvailable reports whether /api/tags answers 200 within a short timeout
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	resp, err := a.getTags(ctx)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// ListModels returns the names of the models the server has pulled
func (a *Adapter) ListModels(ctx context.Context) ([]string, error) {
	resp, err := a.getTags(ctx)
	if err != nil {
		return nil, providers.TransportError(ctx, a.Name(), err)
	}
	defer resp.Body.Close()

	body, err := providers.ReadBody(ctx, a.Name(), resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providers.StatusError(a.Name(), resp.StatusCode, openai.ErrorMessage(body))
	}

	var tags tagsResponse
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, providers.NewProviderError(a.Name(), providers.CodeInvalidResponse, "Failed to parse model list", resp.StatusCode, false, err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// SupportsModel accepts any model unless the adapter was configured with an
// explicit list. Ollama resolves "llama2" and "llama2:latest" to the same tag.
func (a *Adapter) SupportsModel(model string) bool {
	if len(a.config.Models) == 0 {
		return model != ""
	}
	for _, m := range a.config.Models {
		if m == model || strings.TrimSuffix(m, ":latest") == model {
			return true
		}
	}
	return false
}

func (a *Adapter) getTags(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+tagsPath, nil)
	if err != nil {
		return nil, err
	}
	a.setHeaders(req)
	return a.httpClient.Do(req)
}

func (a *Adapter) setHeaders(req *http.Request) {
	if a.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}
}
