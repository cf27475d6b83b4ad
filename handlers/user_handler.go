package handlers

import (
	"net/http"

	"github.com/upb/helpdesk-orchestrator/middleware"
	"github.com/upb/helpdesk-orchestrator/utils"
)

// CurrentUserResponse is the authenticated caller as seen by the API
type CurrentUserResponse struct {
	Sub   string   `json:"sub"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles"`
}

// HandleCurrentUser handles GET /api/v1/me. Must run after RequireAuth.
func HandleCurrentUser(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	roles := claims.Roles
	if roles == nil {
		roles = []string{}
	}
	_ = utils.WriteOK(w, CurrentUserResponse{
		Sub:   claims.Sub,
		Email: claims.Email,
		Roles: roles,
	})
}
