package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/helpdesk-orchestrator/internal/textvec"
	"github.com/upb/helpdesk-orchestrator/models"
	"github.com/upb/helpdesk-orchestrator/services/knowledge"
)

func newKnowledgeRouter(t *testing.T) http.Handler {
	t.Helper()
	idx, err := knowledge.NewIndex([]models.KnowledgeEntry{
		{ID: "kb1", Question: "How do I reset my password?", Answer: "Use the reset link.", Category: "Account", Tags: []string{"password"}},
		{ID: "kb2", Question: "How do I connect to the VPN?", Answer: "Install the client.", Category: "Network", Tags: []string{"vpn"}},
		{ID: "kb3", Question: "How do I unlock my account?", Answer: "Call the service desk.", Category: "Account", Escalation: true},
	}, textvec.Options{})
	require.NoError(t, err)

	h := NewKnowledgeHandler(idx, zap.NewNop())
	r := chi.NewRouter()
	r.Get("/knowledge", h.HandleList)
	r.Get("/knowledge/{id}", h.HandleGet)
	return r
}

func TestKnowledgeHandler_List(t *testing.T) {
	router := newKnowledgeRouter(t)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "all entries in order", query: "", wantIDs: []string{"kb1", "kb2", "kb3"}},
		{name: "category filter ignores case", query: "?category=account", wantIDs: []string{"kb1", "kb3"}},
		{name: "tag filter", query: "?tag=VPN", wantIDs: []string{"kb2"}},
		{name: "no match", query: "?category=printers", wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge"+tt.query, nil))

			assert.Equal(t, http.StatusOK, w.Code)

			var response struct {
				Data KnowledgeListResponse `json:"data"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

			ids := make([]string, 0, len(response.Data.Entries))
			for _, e := range response.Data.Entries {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), response.Data.Total)
		})
	}
}

func TestKnowledgeHandler_Get(t *testing.T) {
	router := newKnowledgeRouter(t)

	t.Run("existing entry", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge/kb3", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeData(t, w)
		assert.Equal(t, "kb3", data["id"])
		assert.Equal(t, true, data["escalation"])
	})

	t.Run("unknown entry", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge/kb99", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
