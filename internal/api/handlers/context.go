package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/propelgov/propelai/internal/api"
	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/service"
)

type ContextService interface {
	GetContext(ctx context.Context, projectID string, category domain.DocumentCategory, mc domain.ModelCategory, pins []string) (*service.ContextResult, error)
	GetBuildStatus(ctx context.Context, projectID string, category domain.DocumentCategory) (*domain.BuildStatus, error)
}

type BuildTrigger interface {
	TriggerBuild(projectID string, category domain.DocumentCategory)
}

type ContextHandler struct {
	svc     ContextService
	builder BuildTrigger
}

func NewContextHandler(svc ContextService, builder BuildTrigger) *ContextHandler {
	return &ContextHandler{svc: svc, builder: builder}
}

type ContextResponse struct {
	State          string                         `json:"state"`
	Stale          bool                           `json:"stale,omitempty"`
	Warning        string                         `json:"warning,omitempty"`
	Text           string                         `json:"text,omitempty"`
	Chunks         []domain.SelectedChunk         `json:"chunks,omitempty"`
	TokenCount     int                            `json:"token_count"`
	CharacterCount int                            `json:"character_count"`
	WordCount      int                            `json:"word_count"`
	DocumentCount  int                            `json:"document_count"`
	Overflowed     bool                           `json:"overflowed"`
	Recommendation *domain.OverflowRecommendation `json:"recommendation,omitempty"`
	Fingerprint    string                         `json:"fingerprint,omitempty"`
	BuiltAt        string                         `json:"built_at,omitempty"`
}

// Get serves the assembled context for one (project, category) key.
// Responds 200 with the bundle when one is servable and 202 when the first
// build is still running.
func (h *ContextHandler) Get(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	category := domain.DocumentCategory(chi.URLParam(r, "category"))
	if !domain.IsValidDocumentCategory(category) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	mc := domain.ModelCategory(r.URL.Query().Get("model_category"))
	if mc != "" && !domain.IsValidModelCategory(mc) {
		api.Error(w, http.StatusBadRequest, "invalid model_category")
		return
	}

	var pins []string
	if raw := r.URL.Query().Get("pins"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				pins = append(pins, id)
			}
		}
	}

	result, err := h.svc.GetContext(r.Context(), projectID, category, mc, pins)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := ContextResponse{
		State:   string(result.State),
		Stale:   result.Stale,
		Warning: result.Warning,
	}
	if result.Bundle != nil {
		b := result.Bundle
		resp.Text = b.Text
		resp.Chunks = b.Chunks
		resp.TokenCount = b.TokenCount
		resp.CharacterCount = b.CharacterCount
		resp.WordCount = b.WordCount
		resp.DocumentCount = b.DocumentCount
		resp.Overflowed = b.Overflowed
		resp.Recommendation = b.Recommendation
		resp.Fingerprint = b.Fingerprint
		resp.BuiltAt = b.BuiltAt.UTC().Format(time.RFC3339Nano)
	}

	status := http.StatusOK
	if result.Bundle == nil && result.State == domain.BuildStateBuilding {
		status = http.StatusAccepted
	}
	api.Success(w, status, resp)
}

type BuildStatusResponse struct {
	State         string `json:"state"`
	TokenCount    int    `json:"token_count"`
	DocumentCount int    `json:"document_count"`
	Error         string `json:"error,omitempty"`
	Fingerprint   string `json:"fingerprint,omitempty"`
	BuiltAt       string `json:"built_at,omitempty"`
	Stale         bool   `json:"stale"`
}

// Status is the lightweight poll endpoint the editor uses to show live token
// counts and build progress.
func (h *ContextHandler) Status(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	category := domain.DocumentCategory(chi.URLParam(r, "category"))
	if !domain.IsValidDocumentCategory(category) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	status, err := h.svc.GetBuildStatus(r.Context(), projectID, category)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := BuildStatusResponse{
		State:         string(status.State),
		TokenCount:    status.TokenCount,
		DocumentCount: status.DocumentCount,
		Error:         status.ErrorMessage,
		Fingerprint:   status.Fingerprint,
		Stale:         status.Stale,
	}
	if !status.BuiltAt.IsZero() {
		resp.BuiltAt = status.BuiltAt.UTC().Format(time.RFC3339Nano)
	}

	api.Success(w, http.StatusOK, resp)
}

// Rebuild forces a rebuild of the key, bypassing the debounce window.
func (h *ContextHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	category := domain.DocumentCategory(chi.URLParam(r, "category"))
	if !domain.IsValidDocumentCategory(category) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	h.builder.TriggerBuild(projectID, category)
	api.Success(w, http.StatusAccepted, map[string]string{"state": string(domain.BuildStateBuilding)})
}
