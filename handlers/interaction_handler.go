package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/repositories"
	"github.com/upb/helpdesk-orchestrator/services"
	"github.com/upb/helpdesk-orchestrator/utils"
)

const (
	defaultInteractionLimit = 50
	maxInteractionLimit     = 500
)

// InteractionHandler exposes the interaction audit trail
type InteractionHandler struct {
	repo   repositories.InteractionRepository
	logger *zap.Logger
}

// NewInteractionHandler creates a new InteractionHandler
func NewInteractionHandler(repo repositories.InteractionRepository, logger *zap.Logger) *InteractionHandler {
	return &InteractionHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/interactions?limit=N
func (h *InteractionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultInteractionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxInteractionLimit {
			_ = utils.WriteBadRequest(w, "limit must be between 1 and 500", map[string]interface{}{"limit": raw})
			return
		}
		limit = n
	}

	interactions, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list interactions", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, interactions)
}

// HandleGet handles GET /api/v1/interactions/{id}
func (h *InteractionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid interaction id", nil)
		return
	}

	interaction, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			HandleServiceError(w, services.ErrInteractionNotFound, h.logger)
			return
		}
		HandleServiceError(w, services.WrapInternal("failed to load interaction", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, interaction)
}
