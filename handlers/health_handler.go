package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/services/audit"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// Version is reported by the status endpoint
const Version = "0.1.0"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse describes the running instance
type StatusResponse struct {
	Version          string       `json:"version"`
	Environment      string       `json:"environment"`
	KnowledgeEntries int          `json:"knowledge_entries"`
	Threshold        float64      `json:"threshold"`
	AlwaysCallModel  bool         `json:"always_call_llm"`
	DefaultModel     string       `json:"default_model"`
	Providers        []string     `json:"providers"`
	Audit            *audit.Stats `json:"audit,omitempty"`
}

// BackendProbe reports whether the model backend answers
type BackendProbe interface {
	Available(ctx context.Context) bool
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db      *sql.DB
	backend BackendProbe
	status  func() StatusResponse
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and backend may be nil.
func NewHealthHandler(db *sql.DB, backend BackendProbe, status func() StatusResponse, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		backend: backend,
		status:  status,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: 200 whenever the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz
//
// An unreachable database makes the instance not ready. An unreachable model
// backend only degrades it: knowledge base answers and fallbacks still work.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "ready"
	httpStatus := http.StatusOK

	switch err := h.checkDatabase(ctx); {
	case h.db == nil:
		checks["database"] = "not_configured"
	case err != nil:
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	default:
		checks["database"] = "healthy"
	}

	switch {
	case h.backend == nil:
		checks["model_backend"] = "not_configured"
	case h.backend.Available(ctx):
		checks["model_backend"] = "healthy"
	default:
		h.logger.Warn("model backend is not reachable")
		checks["model_backend"] = "unavailable"
		if status == "ready" {
			status = "degraded"
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// HandleStatus handles GET /api/v1/status
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Version: Version}
	if h.status != nil {
		resp = h.status()
		resp.Version = Version
	}
	_ = utils.WriteOK(w, resp)
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if h.db == nil {
		return nil
	}

	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}
