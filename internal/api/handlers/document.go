package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/propelgov/propelai/internal/api"
	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/service"
)

type DocumentService interface {
	InitUpload(ctx context.Context, input service.InitUploadInput) (*service.InitUploadResult, error)
	CompleteUpload(ctx context.Context, input service.CompleteUploadInput) (*domain.Document, error)
	GetByID(ctx context.Context, documentID string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error)
	Update(ctx context.Context, documentID string, input service.UpdateDocumentInput) (*domain.Document, error)
	SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus) (*domain.Document, error)
	Delete(ctx context.Context, documentID string) error
	GetDownloadURL(ctx context.Context, documentID string) (string, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID           string   `json:"id"`
	ProjectID    string   `json:"project_id"`
	Name         string   `json:"name"`
	Category     string   `json:"category"`
	Status       string   `json:"status"`
	MimeType     string   `json:"mime_type"`
	SizeBytes    int64    `json:"size_bytes"`
	SHA256       string   `json:"sha256"`
	Agency       string   `json:"agency,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func documentResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:           d.ID,
		ProjectID:    d.ProjectID,
		Name:         d.Name,
		Category:     string(d.Category),
		Status:       string(d.Status),
		MimeType:     d.MimeType,
		SizeBytes:    d.SizeBytes,
		SHA256:       d.SHA256,
		Agency:       d.Agency,
		Technologies: d.Technologies,
		Keywords:     d.Keywords,
		CreatedAt:    d.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type InitUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type InitUploadResponse struct {
	DocumentID string `json:"document_id"`
	StorageKey string `json:"storage_key"`
	UploadURL  string `json:"upload_url"`
}

func (h *DocumentHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	result, err := h.svc.InitUpload(r.Context(), service.InitUploadInput{
		ProjectID:   projectID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, InitUploadResponse{
		DocumentID: result.DocumentID,
		StorageKey: result.StorageKey,
		UploadURL:  result.UploadURL,
	})
}

type CompleteUploadRequest struct {
	DocumentID   string   `json:"document_id"`
	Filename     string   `json:"filename"`
	ContentType  string   `json:"content_type"`
	StorageKey   string   `json:"storage_key"`
	SHA256       string   `json:"sha256"`
	Category     string   `json:"category"`
	Agency       string   `json:"agency,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

func (h *DocumentHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	var req CompleteUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentID == "" || req.StorageKey == "" || req.SHA256 == "" {
		api.Error(w, http.StatusBadRequest, "document_id, storage_key and sha256 are required")
		return
	}

	category := domain.DocumentCategory(req.Category)
	if !domain.IsValidDocumentCategory(category) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	doc, err := h.svc.CompleteUpload(r.Context(), service.CompleteUploadInput{
		DocumentID:   req.DocumentID,
		ProjectID:    projectID,
		Filename:     req.Filename,
		ContentType:  req.ContentType,
		StorageKey:   req.StorageKey,
		SHA256:       req.SHA256,
		Category:     category,
		Agency:       req.Agency,
		Technologies: req.Technologies,
		Keywords:     req.Keywords,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")

	docs, err := h.svc.ListByProject(r.Context(), projectID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(docs))
	for i, d := range docs {
		responses[i] = documentResponse(d)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentResponse(doc))
}

type UpdateDocumentRequest struct {
	Name         *string  `json:"name,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Agency       *string  `json:"agency,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.UpdateDocumentInput{
		Name:         req.Name,
		Agency:       req.Agency,
		Technologies: req.Technologies,
		Keywords:     req.Keywords,
	}
	if req.Category != nil {
		category := domain.DocumentCategory(*req.Category)
		if !domain.IsValidDocumentCategory(category) {
			api.Error(w, http.StatusBadRequest, "invalid category")
			return
		}
		input.Category = &category
	}

	doc, err := h.svc.Update(r.Context(), documentID, input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentResponse(doc))
}

func (h *DocumentHandler) Archive(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.DocumentStatusArchived)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentResponse(doc))
}

func (h *DocumentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), domain.DocumentStatusActive)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentResponse(doc))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *DocumentHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.GetDownloadURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"download_url": url})
}
