package openai

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/upb/helpdesk-orchestrator/services/providers"
)

// Wire types for the OpenAI chat completions API. Ollama serves the same
// shape under /v1/chat/completions, so its adapter reuses these.

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
	Stop        []string  `json:"stop,omitempty"`
	User        *string   `json:"user,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// BuildRequest converts a unified request to the wire format
func BuildRequest(req *providers.ChatRequest) *ChatCompletionRequest {
	wire := &ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]Message, len(req.Messages)),
	}

	for i, msg := range req.Messages {
		wire.Messages[i] = Message{
			Role:    msg.Role,
			Content: msg.Content,
			Name:    msg.Name,
		}
	}

	if req.MaxTokens > 0 {
		wire.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		wire.Temperature = &req.Temperature
	}
	if req.TopP > 0 {
		wire.TopP = &req.TopP
	}
	if len(req.Stop) > 0 {
		wire.Stop = req.Stop
	}
	if req.User != "" {
		wire.User = &req.User
	}

	return wire
}

// ToUnified converts a wire response to the unified format
func (r *ChatCompletionResponse) ToUnified(provider string, req *providers.ChatRequest, latency time.Duration) *providers.ChatResponse {
	resp := &providers.ChatResponse{
		ID:       r.ID,
		Model:    r.Model,
		Provider: provider,
		Choices:  make([]providers.Choice, len(r.Choices)),
		Usage: providers.Usage{
			PromptTokens:     r.Usage.PromptTokens,
			CompletionTokens: r.Usage.CompletionTokens,
			TotalTokens:      r.Usage.TotalTokens,
		},
		Latency:  latency,
		Created:  time.Unix(r.Created, 0),
		Metadata: req.Metadata,
	}
	if r.Created == 0 {
		resp.Created = time.Now()
	}
	if resp.Model == "" {
		resp.Model = req.Model
	}

	for i, choice := range r.Choices {
		resp.Choices[i] = providers.Choice{
			Index: choice.Index,
			Message: providers.Message{
				Role:    choice.Message.Role,
				Content: choice.Message.Content,
				Name:    choice.Message.Name,
			},
			FinishReason: choice.FinishReason,
		}
	}

	return resp
}

// ErrorMessage extracts a human readable message from an error body
func ErrorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
