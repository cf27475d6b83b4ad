// Package helpdesk answers support questions from the knowledge base or the
// model backend, falling back to the closest knowledge base entry when the
// backend fails.
package helpdesk

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/internal/escalation"
	"github.com/upb/helpdesk-orchestrator/internal/observability"
	"github.com/upb/helpdesk-orchestrator/internal/similarity"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/services"
	"github.com/upb/helpdesk-orchestrator/services/gateway"
	"github.com/upb/helpdesk-orchestrator/services/knowledge"
)

// DefaultMatchLimit is the number of matches Match returns when none is asked for
const DefaultMatchLimit = 5

// Generator is the model backend contract. *gateway.Gateway implements it.
type Generator interface {
	Generate(ctx context.Context, question string, opts gateway.ModelOptions, deadline time.Duration) (*gateway.GeneratedAnswer, error)
}

// Auditor records finished requests without blocking. *audit.AuditService
// implements it.
type Auditor interface {
	LogInteraction(interaction *models.Interaction) error
}

// Service is the orchestration coordinator. Safe for concurrent use.
type Service struct {
	index         *knowledge.Index
	generator     Generator
	auditor       Auditor
	metrics       *observability.Metrics
	classifier    *escalation.Classifier
	classifierErr error
	opts          Options
	logger        *zap.Logger
}

// NewService wires the coordinator. auditor and metrics may be nil.
//
// A malformed escalation config does not prevent construction: every answer
// is then escalated and the failure logged.
func NewService(index *knowledge.Index, generator Generator, auditor Auditor, metrics *observability.Metrics, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	if opts.Retry.Budget <= 0 {
		opts.Retry.Budget = opts.ModelTimeout
	}

	classifier, err := escalation.NewClassifier(opts.Escalation)
	if err != nil {
		logger.Error("escalation classifier unusable, every answer will be escalated", zap.Error(err))
	}

	return &Service{
		index:         index,
		generator:     generator,
		auditor:       auditor,
		metrics:       metrics,
		classifier:    classifier,
		classifierErr: err,
		opts:          opts,
		logger:        logger,
	}
}

// Index returns the knowledge base snapshot the service ranks against
func (s *Service) Index() *knowledge.Index {
	return s.index
}

// Options returns the coordinator settings
func (s *Service) Options() Options {
	return s.opts
}

// Ask answers one question.
//
// Errors are *services.DomainError of type validation, no_answer_available
// or canceled. Backend failures are never returned while the knowledge base
// has at least one entry.
func (s *Service) Ask(ctx context.Context, req Request) (*Result, error) {
	ac := &askContext{
		requestID: req.RequestID,
		question:  strings.TrimSpace(req.Question),
		threshold: s.opts.Threshold,
		model:     req.Model,
		sessionID: strings.TrimSpace(req.SessionID),
		userID:    strings.TrimSpace(req.UserID),
		start:     time.Now(),
	}
	if ac.requestID == "" {
		ac.requestID = uuid.NewString()
	}
	if ac.model == "" {
		ac.model = s.opts.Model
	}
	ac.alwaysModel = s.opts.AlwaysCallModel
	if req.AlwaysCallModel != nil {
		ac.alwaysModel = *req.AlwaysCallModel
	}
	ac.decision.RequestID = ac.requestID

	s.enter(ac, StateStart)
	if ac.question == "" {
		return nil, s.fail(ac, services.ErrEmptyQuestion)
	}
	if req.Threshold != nil {
		if t := *req.Threshold; t <= 0 || t > 1 {
			return nil, s.fail(ac, services.NewDomainError(services.ErrorTypeValidation, services.ErrInvalidThreshold.Message, nil).
				WithDetail("threshold", t))
		}
		ac.threshold = *req.Threshold
	}
	ac.decision.Threshold = ac.threshold

	// Ranking always completes before the decision; its result is the
	// fallback if the model call fails.
	s.enter(ac, StateMatching)
	matches := s.index.Rank(ac.question)
	if best, ok := similarity.Best(matches); ok {
		ac.best = &best
		ac.decision.BestMatch = &best
		s.metrics.RecordMatchScore(best.Score)
	}

	s.enter(ac, StateDeciding)
	var (
		answer     string
		source     models.AnswerSource
		confidence *float64
		entryFlag  bool
	)

	if !ac.alwaysModel && ac.best != nil && ac.best.Score >= ac.threshold {
		s.enter(ac, StateAnsweringKB)
		answer = ac.best.Entry.Answer
		source = models.AnswerSourceKnowledgeBase
		confidence = scorePtr(ac.best.Score)
		entryFlag = ac.best.Entry.Escalation
	} else {
		s.enter(ac, StateCallingModel)
		generated, err := s.callModel(ctx, ac)
		switch {
		case err == nil:
			answer = generated.Text
			source = models.AnswerSourceModel
			ac.decision.Model = generated.Model
			ac.decision.Provider = generated.Provider
		case services.IsCanceledError(err):
			return nil, s.fail(ac, err)
		case ac.best == nil:
			return nil, s.fail(ac, services.NewDomainError(services.ErrorTypeNoAnswer,
				"model backend failed and the knowledge base is empty", err).
				WithDetail("backend_error", string(services.GetErrorType(err))))
		default:
			ac.decision.BackendError = string(services.GetErrorType(err))
			s.logger.Warn("model backend failed, falling back to closest knowledge base entry",
				zap.String("request_id", ac.requestID),
				zap.String("entry_id", ac.best.Entry.ID),
				zap.Float64("score", ac.best.Score),
				zap.Error(err))
			answer = ac.best.Entry.Answer
			source = models.AnswerSourceFallback
			confidence = scorePtr(ac.best.Score)
			entryFlag = ac.best.Entry.Escalation
		}
	}

	s.enter(ac, StateClassifying)
	escalate := s.classify(ac, answer, confidence) || entryFlag

	s.enter(ac, StateDone)
	ac.decision.Latency = time.Since(ac.start)

	result := &Result{
		Answer:          answer,
		Source:          source,
		Confidence:      confidence,
		EscalateToHuman: escalate,
		Decision:        ac.decision,
	}

	s.metrics.RecordAnswer(string(source), escalate, ac.decision.Latency)
	s.audit(ac, result, "")

	fields := []zap.Field{
		zap.String("request_id", ac.requestID),
		zap.String("source", string(source)),
		zap.Bool("escalate_to_human", escalate),
		zap.Duration("latency", ac.decision.Latency),
	}
	if confidence != nil {
		fields = append(fields, zap.Float64("score", *confidence))
	}
	if ac.decision.Model != "" {
		fields = append(fields, zap.String("model", ac.decision.Model))
	}
	s.logger.Info("question answered", fields...)

	return result, nil
}

// Match ranks question against the knowledge base and returns the best limit
// matches. A limit of zero means DefaultMatchLimit.
func (s *Service) Match(ctx context.Context, question string, limit int) ([]similarity.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeCanceled, services.ErrCanceled.Message, err)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, services.ErrEmptyQuestion
	}
	if limit < 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "limit cannot be negative", nil).
			WithDetail("limit", limit)
	}
	if limit == 0 {
		limit = DefaultMatchLimit
	}
	return similarity.Top(s.index.Rank(question), limit), nil
}

// callModel runs the gateway under the retry policy. Each attempt gets the
// configured model timeout, trimmed to what is left of the budget.
func (s *Service) callModel(ctx context.Context, ac *askContext) (*gateway.GeneratedAnswer, error) {
	policy := s.opts.Retry

	opts := gateway.ModelOptions{
		Model:        ac.model,
		Temperature:  s.opts.Temperature,
		MaxTokens:    s.opts.MaxTokens,
		SystemPrompt: s.opts.SystemPrompt,
	}
	if s.opts.IncludeKBContext && ac.best != nil && ac.best.Score > 0 {
		opts.Context = ac.best.Entry.Answer
	}

	base := policy.Backoff
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.NewExponential(base)
	backoff = retry.WithMaxRetries(uint64(policy.MaxAttempts-1), backoff)
	backoff = retry.WithMaxDuration(policy.Budget, backoff)

	began := time.Now()
	var lastErr error

	generated, err := retry.DoValue(ctx, backoff, func(ctx context.Context) (*gateway.GeneratedAnswer, error) {
		remaining := policy.Budget - time.Since(began)
		if remaining <= 0 && lastErr != nil {
			return nil, lastErr
		}
		deadline := s.opts.ModelTimeout
		if remaining < deadline {
			deadline = remaining
		}

		ac.decision.Attempts++
		attemptStart := time.Now()
		answer, err := s.generator.Generate(ctx, ac.question, opts, deadline)
		if err != nil {
			lastErr = err
			var be *gateway.BackendError
			if errors.As(err, &be) {
				s.metrics.RecordBackendCall(be.Provider, string(be.Kind), time.Since(attemptStart))
				s.logger.Debug("model attempt failed",
					zap.String("request_id", ac.requestID),
					zap.Int("attempt", ac.decision.Attempts),
					zap.String("kind", string(be.Kind)),
					zap.Bool("retryable", be.Retryable()))
				if be.Retryable() {
					return nil, retry.RetryableError(err)
				}
			}
			return nil, err
		}

		s.metrics.RecordBackendCall(answer.Provider, "ok", answer.Latency)
		return answer, nil
	})
	if err != nil {
		return nil, backendDomainError(err)
	}
	return generated, nil
}

// classify runs the escalation classifier. An unusable classifier escalates.
func (s *Service) classify(ac *askContext, answer string, confidence *float64) bool {
	if s.classifierErr != nil {
		ac.decision.ClassifierFailed = true
		s.logger.Warn("escalation classifier failed, escalating",
			zap.String("request_id", ac.requestID),
			zap.Error(s.classifierErr))
		return true
	}
	reasons := s.classifier.Reasons(answer, confidence)
	ac.decision.EscalationReasons = reasons
	return len(reasons) > 0
}

func (s *Service) enter(ac *askContext, state State) {
	ac.decision.States = append(ac.decision.States, state)
	s.logger.Debug("ask state",
		zap.String("request_id", ac.requestID),
		zap.String("state", string(state)))
}

// fail moves the request to ERROR and records it
func (s *Service) fail(ac *askContext, err error) error {
	s.enter(ac, StateError)
	latency := time.Since(ac.start)
	kind := string(services.GetErrorType(err))
	if kind == "" {
		kind = string(services.ErrorTypeInternal)
	}

	s.metrics.RecordFailure(kind, latency)
	s.audit(ac, nil, kind)

	log := s.logger.Warn
	if services.IsValidationError(err) || services.IsCanceledError(err) {
		log = s.logger.Debug
	}
	log("question not answered",
		zap.String("request_id", ac.requestID),
		zap.String("error_kind", kind),
		zap.Duration("latency", latency),
		zap.Error(err))

	return err
}

func (s *Service) audit(ac *askContext, result *Result, errorKind string) {
	if s.auditor == nil {
		return
	}

	interaction := models.NewInteraction(ac.requestID, ac.question).
		WithSession(ac.sessionID, ac.userID).
		WithLatency(time.Since(ac.start))
	if result != nil {
		interaction.WithAnswer(result.Answer, result.Source, result.Confidence, result.EscalateToHuman)
	}
	if ac.best != nil {
		interaction.WithMatch(ac.best.Entry.ID)
	}
	if ac.decision.Attempts > 0 {
		model := ac.decision.Model
		if model == "" {
			model = ac.model
		}
		interaction.WithModel(model)
	}
	if errorKind != "" {
		interaction.WithError(errorKind)
	} else if ac.decision.BackendError != "" {
		interaction.WithError(ac.decision.BackendError)
	}

	// the auditor logs its own drops
	_ = s.auditor.LogInteraction(interaction)
}

// backendDomainError converts a gateway or retry failure into a DomainError
func backendDomainError(err error) *services.DomainError {
	switch gateway.KindOf(err) {
	case gateway.KindTimeout:
		return services.NewDomainError(services.ErrorTypeBackendTimeout, services.ErrBackendTimeout.Message, err)
	case gateway.KindUnavailable:
		return services.NewDomainError(services.ErrorTypeBackendUnavailable, services.ErrBackendUnavailable.Message, err)
	case gateway.KindInvalidResponse:
		return services.NewDomainError(services.ErrorTypeBackendInvalidResponse, services.ErrBackendInvalidResponse.Message, err)
	case gateway.KindRateLimited:
		return services.NewDomainError(services.ErrorTypeBackendRateLimited, services.ErrBackendRateLimited.Message, err)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return services.NewDomainError(services.ErrorTypeCanceled, services.ErrCanceled.Message, err)
	case errors.Is(err, context.DeadlineExceeded):
		return services.NewDomainError(services.ErrorTypeBackendTimeout, services.ErrBackendTimeout.Message, err)
	default:
		return services.NewDomainError(services.ErrorTypeBackendUnavailable, services.ErrBackendUnavailable.Message, err)
	}
}

func scorePtr(score float64) *float64 {
	return &score
}
