// Package gateway wraps the provider registry behind a single-attempt,
// deadline-bounded Generate call and normalises every failure into a
// BackendError.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/services/providers"
)

// ModelOptions tune a single generation. Zero fields fall back to the
// gateway defaults.
type ModelOptions struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	// Context is extra grounding text sent as a second system message
	Context string
}

// GeneratedAnswer is a successful model response
type GeneratedAnswer struct {
	Text     string
	Model    string
	Provider string
	Usage    providers.Usage
	Latency  time.Duration
}

// Gateway issues one provider call per Generate
type Gateway struct {
	registry *providers.Registry
	defaults ModelOptions
	logger   *zap.Logger
}

// New creates a gateway over registry
func New(registry *providers.Registry, defaults ModelOptions, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		registry: registry,
		defaults: defaults,
		logger:   logger,
	}
}

// DefaultModel returns the model used when a call does not name one
func (g *Gateway) DefaultModel() string {
	return g.defaults.Model
}

type callResult struct {
	resp *providers.ChatResponse
	err  error
}

// Generate asks the backend to answer question. The call is abandoned once
// deadline elapses, whether or not the provider honours its context.
func (g *Gateway) Generate(ctx context.Context, question string, opts ModelOptions, deadline time.Duration) (*GeneratedAnswer, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		return nil, &BackendError{Kind: KindTimeout, Message: "deadline exceeded before call", Cause: err}
	}
	if deadline <= 0 {
		return nil, &BackendError{Kind: KindTimeout, Message: "no time left for call"}
	}

	opts = g.withDefaults(opts)

	provider, err := g.registry.GetProviderForModel(opts.Model)
	if err != nil {
		return nil, &BackendError{Kind: KindUnavailable, Message: "no provider for model " + opts.Model, Cause: err}
	}

	req := &providers.ChatRequest{
		Model:       opts.Model,
		Messages:    buildMessages(question, opts),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	start := time.Now()
	results := make(chan callResult, 1)
	go func() {
		resp, err := provider.ChatCompletion(callCtx, req)
		results <- callResult{resp: resp, err: err}
	}()

	var res callResult
	select {
	case res = <-results:
	case <-callCtx.Done():
		// The goroutine writes to a buffered channel and exits on its own.
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, context.Canceled
		}
		g.logger.Warn("model call abandoned at deadline",
			zap.String("provider", provider.Name()),
			zap.String("model", opts.Model),
			zap.Duration("deadline", deadline))
		return nil, &BackendError{Kind: KindTimeout, Provider: provider.Name(), Message: "deadline exceeded", Cause: callCtx.Err()}
	}

	latency := time.Since(start)

	if res.err != nil {
		classified := classify(ctx, provider.Name(), res.err)
		g.logger.Warn("model call failed",
			zap.String("provider", provider.Name()),
			zap.String("model", opts.Model),
			zap.String("kind", string(KindOf(classified))),
			zap.Duration("latency", latency),
			zap.Error(res.err))
		return nil, classified
	}

	text := strings.TrimSpace(res.resp.Content())
	if text == "" {
		return nil, &BackendError{Kind: KindInvalidResponse, Provider: provider.Name(), Message: "empty answer"}
	}

	model := res.resp.Model
	if model == "" {
		model = opts.Model
	}

	g.logger.Debug("model call succeeded",
		zap.String("provider", provider.Name()),
		zap.String("model", model),
		zap.Duration("latency", latency),
		zap.Int("total_tokens", res.resp.Usage.TotalTokens))

	return &GeneratedAnswer{
		Text:     text,
		Model:    model,
		Provider: provider.Name(),
		Usage:    res.resp.Usage,
		Latency:  latency,
	}, nil
}

// Available reports whether the default provider answers its health probe
func (g *Gateway) Available(ctx context.Context) bool {
	provider, err := g.registry.Default()
	if err != nil {
		return false
	}
	return provider.IsAvailable(ctx)
}

// Models lists the models of the default provider
func (g *Gateway) Models(ctx context.Context) ([]string, error) {
	provider, err := g.registry.Default()
	if err != nil {
		return nil, &BackendError{Kind: KindUnavailable, Message: "no provider registered", Cause: err}
	}
	models, err := provider.ListModels(ctx)
	if err != nil {
		return nil, classify(ctx, provider.Name(), err)
	}
	return models, nil
}

func (g *Gateway) withDefaults(opts ModelOptions) ModelOptions {
	if opts.Model == "" {
		opts.Model = g.defaults.Model
	}
	if opts.Temperature == 0 {
		opts.Temperature = g.defaults.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = g.defaults.MaxTokens
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = g.defaults.SystemPrompt
	}
	return opts
}

func buildMessages(question string, opts ModelOptions) []providers.Message {
	messages := make([]providers.Message, 0, 3)
	if opts.SystemPrompt != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: opts.SystemPrompt})
	}
	if c := strings.TrimSpace(opts.Context); c != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: "Context information: " + c})
	}
	return append(messages, providers.Message{Role: providers.RoleUser, Content: question})
}
