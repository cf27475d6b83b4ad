package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/services/gateway"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// ModelLister lists the models the default backend can serve
type ModelLister interface {
	Models(ctx context.Context) ([]string, error)
	DefaultModel() string
}

// ModelListResponse is the body of GET /api/v1/models
type ModelListResponse struct {
	Default string   `json:"default"`
	Models  []string `json:"models"`
}

// ModelHandler exposes the model backend's catalogue
type ModelHandler struct {
	lister ModelLister
	logger *zap.Logger
}

// NewModelHandler creates a new ModelHandler
func NewModelHandler(lister ModelLister, logger *zap.Logger) *ModelHandler {
	return &ModelHandler{
		lister: lister,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/models
func (h *ModelHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	models, err := h.lister.Models(r.Context())
	if err != nil {
		kind := gateway.KindOf(err)
		h.logger.Warn("failed to list models", zap.String("kind", string(kind)), zap.Error(err))
		_ = utils.WriteServiceUnavailable(w, "model_backend_unavailable", "Model backend did not list its models",
			map[string]interface{}{"backend_error": string(kind)})
		return
	}
	if models == nil {
		models = []string{}
	}

	_ = utils.WriteOK(w, ModelListResponse{
		Default: h.lister.DefaultModel(),
		Models:  models,
	})
}
