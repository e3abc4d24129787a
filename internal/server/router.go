package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/propelgov/propelai/internal/api"
	"github.com/propelgov/propelai/internal/api/handlers"
	"github.com/propelgov/propelai/internal/api/middleware"
)

type RouterConfig struct {
	ProjectHandler  *handlers.ProjectHandler
	DocumentHandler *handlers.DocumentHandler
	ContextHandler  *handlers.ContextHandler
	DraftHandler    *handlers.DraftHandler
	PolicyHandler   *handlers.PolicyHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Post("/", cfg.ProjectHandler.Create)
		r.Get("/", cfg.ProjectHandler.List)
		r.Get("/{id}", cfg.ProjectHandler.Get)
		r.Put("/{id}", cfg.ProjectHandler.Update)
		r.Delete("/{id}", cfg.ProjectHandler.Delete)

		r.Route("/{projectID}/documents", func(r chi.Router) {
			r.Post("/init", cfg.DocumentHandler.InitUpload)
			r.Post("/complete", cfg.DocumentHandler.CompleteUpload)
			r.Get("/", cfg.DocumentHandler.List)
		})

		r.Route("/{projectID}/context/{category}", func(r chi.Router) {
			r.Get("/", cfg.ContextHandler.Get)
			r.Get("/status", cfg.ContextHandler.Status)
			r.Post("/rebuild", cfg.ContextHandler.Rebuild)
		})

		r.Post("/{projectID}/drafts", cfg.DraftHandler.Generate)
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Put("/{id}", cfg.DocumentHandler.Update)
		r.Post("/{id}/archive", cfg.DocumentHandler.Archive)
		r.Post("/{id}/restore", cfg.DocumentHandler.Restore)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)
		r.Get("/{id}/download", cfg.DocumentHandler.DownloadURL)
	})

	r.Route("/policies", func(r chi.Router) {
		r.Get("/{modelCategory}", cfg.PolicyHandler.Get)
		r.Put("/{modelCategory}", cfg.PolicyHandler.Put)
		r.Delete("/{modelCategory}", cfg.PolicyHandler.Delete)
	})

	return r
}
