package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/propelgov/propelai/internal/api"
	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/service"
)

type DraftService interface {
	GenerateDraft(ctx context.Context, req service.DraftRequest) (*service.Draft, error)
}

type DraftHandler struct {
	svc DraftService
}

func NewDraftHandler(svc DraftService) *DraftHandler {
	return &DraftHandler{svc: svc}
}

type GenerateDraftRequest struct {
	Category      string   `json:"category"`
	Section       string   `json:"section"`
	Instructions  string   `json:"instructions,omitempty"`
	ModelCategory string   `json:"model_category,omitempty"`
	Pins          []string `json:"pins,omitempty"`
}

func (h *DraftHandler) Generate(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req GenerateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Section == "" {
		api.Error(w, http.StatusBadRequest, "section is required")
		return
	}

	category := domain.DocumentCategory(req.Category)
	if !domain.IsValidDocumentCategory(category) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	mc := domain.ModelCategory(req.ModelCategory)
	if mc != "" && !domain.IsValidModelCategory(mc) {
		api.Error(w, http.StatusBadRequest, "invalid model_category")
		return
	}

	draft, err := h.svc.GenerateDraft(r.Context(), service.DraftRequest{
		ProjectID:     projectID,
		Category:      category,
		Section:       req.Section,
		Instructions:  req.Instructions,
		ModelCategory: mc,
		Pins:          req.Pins,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, draft)
}
