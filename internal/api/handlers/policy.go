package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/propelgov/propelai/internal/api"
	"github.com/propelgov/propelai/internal/domain"
)

type PolicyRepository interface {
	GetAllocationPolicy(ctx context.Context, mc domain.ModelCategory) (domain.AllocationPolicy, error)
	Upsert(ctx context.Context, mc domain.ModelCategory, policy domain.AllocationPolicy) error
	Delete(ctx context.Context, mc domain.ModelCategory) error
}

// PolicyHandler exposes admin tuning of allocation policies.
type PolicyHandler struct {
	repo PolicyRepository
}

func NewPolicyHandler(repo PolicyRepository) *PolicyHandler {
	return &PolicyHandler{repo: repo}
}

func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	mc := domain.ModelCategory(chi.URLParam(r, "modelCategory"))
	if !domain.IsValidModelCategory(mc) {
		api.Error(w, http.StatusBadRequest, "invalid model category")
		return
	}

	policy, err := h.repo.GetAllocationPolicy(r.Context(), mc)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, policy)
}

func (h *PolicyHandler) Put(w http.ResponseWriter, r *http.Request) {
	mc := domain.ModelCategory(chi.URLParam(r, "modelCategory"))
	if !domain.IsValidModelCategory(mc) {
		api.Error(w, http.StatusBadRequest, "invalid model category")
		return
	}

	var policy domain.AllocationPolicy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.Upsert(r.Context(), mc, policy); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, policy)
}

// Delete reverts a model category to the built-in default policy.
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	mc := domain.ModelCategory(chi.URLParam(r, "modelCategory"))
	if !domain.IsValidModelCategory(mc) {
		api.Error(w, http.StatusBadRequest, "invalid model category")
		return
	}

	if err := h.repo.Delete(r.Context(), mc); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "reverted to default"})
}
