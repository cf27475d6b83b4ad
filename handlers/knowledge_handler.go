package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// KnowledgeCatalog is the read-only view of the loaded knowledge base
type KnowledgeCatalog interface {
	Entries() []models.KnowledgeEntry
	Lookup(id string) (models.KnowledgeEntry, bool)
}

// KnowledgeListResponse wraps a filtered entry listing
type KnowledgeListResponse struct {
	Entries []models.KnowledgeEntry `json:"entries"`
	Total   int                     `json:"total"`
}

// KnowledgeHandler serves knowledge base entries
type KnowledgeHandler struct {
	catalog KnowledgeCatalog
	logger  *zap.Logger
}

// NewKnowledgeHandler creates a new KnowledgeHandler
func NewKnowledgeHandler(catalog KnowledgeCatalog, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/knowledge
// Optional filters: ?category= (exact, case-insensitive) and ?tag=
func (h *KnowledgeHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	tag := strings.TrimSpace(r.URL.Query().Get("tag"))

	entries := h.catalog.Entries()
	out := make([]models.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if category != "" && !strings.EqualFold(e.Category, category) {
			continue
		}
		if tag != "" && !e.HasTag(tag) {
			continue
		}
		out = append(out, e)
	}

	_ = utils.WriteOK(w, KnowledgeListResponse{Entries: out, Total: len(out)})
}

// HandleGet handles GET /api/v1/knowledge/{id}
func (h *KnowledgeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, ok := h.catalog.Lookup(id)
	if !ok {
		h.logger.Debug("knowledge entry not found", zap.String("entry_id", id))
		_ = utils.WriteNotFound(w, "Knowledge entry not found")
		return
	}

	_ = utils.WriteOK(w, entry)
}
