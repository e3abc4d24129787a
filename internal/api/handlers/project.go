package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/propelgov/propelai/internal/api"
	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/pagination"
	"github.com/propelgov/propelai/internal/service"
)

type ProjectService interface {
	Create(ctx context.Context, input service.CreateProjectInput) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, cursor string, limit int) (*pagination.PageResult[*domain.Project], error)
	Update(ctx context.Context, id string, input service.UpdateProjectInput) (*domain.Project, error)
	Delete(ctx context.Context, id string) error
}

type ProjectHandler struct {
	svc ProjectService
}

func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

type ProjectResponse struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Agency       string   `json:"agency,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	CreatedAt    string   `json:"created_at"`
}

func projectResponse(p *domain.Project) *ProjectResponse {
	return &ProjectResponse{
		ID:           p.ID,
		Name:         p.Name,
		Agency:       p.Agency,
		Technologies: p.Technologies,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type CreateProjectRequest struct {
	Name         string   `json:"name"`
	Agency       string   `json:"agency,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := h.svc.Create(r.Context(), service.CreateProjectInput{
		Name:         req.Name,
		Agency:       req.Agency,
		Technologies: req.Technologies,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, projectResponse(project))
}

func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	project, err := h.svc.GetByID(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectResponse(project))
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ProjectResponse, len(page.Items))
	for i, p := range page.Items {
		responses[i] = projectResponse(p)
	}

	api.Success(w, http.StatusOK, pagination.PageResult[*ProjectResponse]{
		Items:   responses,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

type UpdateProjectRequest struct {
	Name         *string  `json:"name,omitempty"`
	Agency       *string  `json:"agency,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	project, err := h.svc.Update(r.Context(), projectID, service.UpdateProjectInput{
		Name:         req.Name,
		Agency:       req.Agency,
		Technologies: req.Technologies,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, projectResponse(project))
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), projectID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"status": "deleted"})
}
