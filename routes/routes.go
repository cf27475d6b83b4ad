package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/helpdesk-orchestrator/app"
	"github.com/upb/helpdesk-orchestrator/handlers"
	appmw "github.com/upb/helpdesk-orchestrator/middleware"
)

// minRequestTimeout is the floor for the per-request deadline
const minRequestTimeout = 60 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(appmw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(deps)))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", appmw.RequestIDHeader},
		ExposedHeaders:   []string{appmw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := newHealthHandler(deps)
	helpdesk := handlers.NewHelpdeskHandler(deps.HelpdeskService, deps.Logger)
	knowledge := handlers.NewKnowledgeHandler(deps.KnowledgeIndex, deps.Logger)
	interactions := handlers.NewInteractionHandler(deps.Interactions, deps.Logger)
	modelList := handlers.NewModelHandler(deps.Gateway, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/status", health.HandleStatus)

		r.Group(func(r chi.Router) {
			requireAuth(r, deps)
			r.Post("/ask", helpdesk.HandleAsk)

			if deps.AuthMiddleware != nil {
				r.Get("/me", handlers.HandleCurrentUser)
			}

			// Diagnostics and knowledge base browsing (support admins)
			r.Group(func(r chi.Router) {
				requireRole(r, deps, deps.Config.Auth.AdminRole)
				r.Post("/match", helpdesk.HandleMatch)
				r.Get("/knowledge", knowledge.HandleList)
				r.Get("/knowledge/{id}", knowledge.HandleGet)
				r.Get("/interactions", interactions.HandleList)
				r.Get("/interactions/{id}", interactions.HandleGet)
				r.Get("/models", modelList.HandleList)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// newHealthHandler adapts the dependency graph to the health endpoints
func newHealthHandler(deps *app.Dependencies) *handlers.HealthHandler {
	status := func() handlers.StatusResponse {
		s := deps.StatusSnapshot()
		return handlers.StatusResponse{
			Environment:      s.Environment,
			KnowledgeEntries: s.KnowledgeEntries,
			Threshold:        s.Threshold,
			AlwaysCallModel:  s.AlwaysCallModel,
			DefaultModel:     s.DefaultModel,
			Providers:        s.Providers,
			Audit:            s.Audit,
		}
	}

	if deps.DB != nil {
		return handlers.NewHealthHandler(deps.DB.DB, deps.Gateway, status, deps.Logger)
	}
	return handlers.NewHealthHandler(nil, deps.Gateway, status, deps.Logger)
}

// requireAuth adds bearer token checks when auth is enabled
func requireAuth(r chi.Router, deps *app.Dependencies) {
	if deps.AuthMiddleware != nil {
		r.Use(deps.AuthMiddleware.RequireAuth)
	}
}

// requireRole restricts the group to role when auth is enabled
func requireRole(r chi.Router, deps *app.Dependencies, role string) {
	if deps.AuthMiddleware != nil && role != "" {
		r.Use(deps.AuthMiddleware.RequireRole(role))
	}
}

// requestTimeout leaves room for every model attempt plus ranking
func requestTimeout(deps *app.Dependencies) time.Duration {
	timeout := minRequestTimeout
	if deps.Config == nil {
		return timeout
	}
	need := deps.Config.Model.Timeout
	if deps.Config.Retry.Budget > need {
		need = deps.Config.Retry.Budget
	}
	if need+5*time.Second > timeout {
		timeout = need + 5*time.Second
	}
	return timeout
}
