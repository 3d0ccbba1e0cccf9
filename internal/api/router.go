package api

import (
	"net/http"

	"github.com/bcnelson/firewalld-rule-manager/internal/api/handler"
	"github.com/bcnelson/firewalld-rule-manager/internal/api/middleware"
	"github.com/bcnelson/firewalld-rule-manager/internal/service"
	"github.com/bcnelson/firewalld-rule-manager/internal/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	syncService *service.SyncService,
	bootstrapKey string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes (auth required, JSON Content-Type)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(store, bootstrapKey))

		// API Keys
		keyHandler := handler.NewAPIKeyHandler(store)
		r.Post("/keys", keyHandler.Create)
		r.Get("/keys", keyHandler.List)
		r.Delete("/keys/{id}", keyHandler.Delete)

		// Firewall Rules
		ruleHandler := handler.NewRuleHandler(store, syncService)
		r.Post("/rules", ruleHandler.Create)
		r.Get("/rules", ruleHandler.List)
		r.Put("/rules/state", ruleHandler.ReplaceState)
		r.Get("/rules/{name}", ruleHandler.Get)
		r.Put("/rules/{name}", ruleHandler.Update)
		r.Delete("/rules/{name}", ruleHandler.Delete)

		// Compiled objects and apply management
		applyHandler := handler.NewApplyHandler(store, syncService)
		r.Get("/objects", applyHandler.Objects)
		r.Post("/apply", applyHandler.Apply)
		r.Get("/apply/versions", applyHandler.ListVersions)
		r.Get("/apply/versions/{id}", applyHandler.GetVersion)
		r.Post("/apply/rollback/{id}", applyHandler.Rollback)
	})

	return r
}
