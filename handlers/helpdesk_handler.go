package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/internal/similarity"
	"github.com/upb/helpdesk-orchestrator/middleware"
	"github.com/upb/helpdesk-orchestrator/services/helpdesk"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// AskRequest is the body of POST /api/v1/ask
type AskRequest struct {
	Question        string   `json:"question" validate:"required"`
	Threshold       *float64 `json:"threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	AlwaysCallModel *bool    `json:"always_call_llm,omitempty"`
	Model           string   `json:"model,omitempty" validate:"max=200"`
	SessionID       string   `json:"session_id,omitempty" validate:"max=255"`
	UserID          string   `json:"user_id,omitempty" validate:"max=255"`
}

// MatchRequest is the body of POST /api/v1/match
type MatchRequest struct {
	Question string `json:"question" validate:"required"`
	Limit    int    `json:"limit,omitempty" validate:"gte=0,lte=100"`
}

// MatchResult is one ranked knowledge base entry
type MatchResult struct {
	ID       string  `json:"id"`
	Question string  `json:"question"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

// HelpdeskService defines the operations exposed over HTTP
type HelpdeskService interface {
	// Ask answers a question from the knowledge base or the model
	Ask(ctx context.Context, req helpdesk.Request) (*helpdesk.Result, error)

	// Match ranks the knowledge base against a question
	Match(ctx context.Context, question string, limit int) ([]similarity.Match, error)
}

// HelpdeskHandler handles question answering requests
type HelpdeskHandler struct {
	service HelpdeskService
	logger  *zap.Logger
}

// NewHelpdeskHandler creates a new HelpdeskHandler
func NewHelpdeskHandler(service HelpdeskService, logger *zap.Logger) *HelpdeskHandler {
	return &HelpdeskHandler{
		service: service,
		logger:  logger,
	}
}

// HandleAsk handles POST /api/v1/ask
func (h *HelpdeskHandler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req AskRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Ask(ctx, helpdesk.Request{
		Question:        req.Question,
		Threshold:       req.Threshold,
		AlwaysCallModel: req.AlwaysCallModel,
		Model:           req.Model,
		RequestID:       requestID,
		SessionID:       req.SessionID,
		UserID:          req.UserID,
	})
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleMatch handles POST /api/v1/match
func (h *HelpdeskHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req MatchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	matches, err := h.service.Match(ctx, req.Question, req.Limit)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	out := make([]MatchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchResult{
			ID:       m.Entry.ID,
			Question: m.Entry.Question,
			Category: m.Entry.Category,
			Score:    m.Score,
		})
	}

	_ = utils.WriteOK(w, out)
}
