package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/propelgov/propelai/internal/domain"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

type StorageClientInterface interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string) (string, error)
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*ObjectMetadata, error)
}

type ObjectMetadata struct {
	ContentLength int64
	ContentType   string
	ETag          string
}

type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error)
	ListByProjectCategory(ctx context.Context, projectID string, category domain.DocumentCategory) ([]*domain.Document, error)
	Update(ctx context.Context, d *domain.Document) error
	Delete(ctx context.Context, id string) error
}

type RebuildJobRepositoryInterface interface {
	Enqueue(ctx context.Context, job *domain.RebuildJob) error
}

// RebuildNotifier receives document-change notifications for a cache key.
type RebuildNotifier interface {
	NotifyChange(projectID string, category domain.DocumentCategory)
}

// DocumentService owns the document lifecycle. Every mutation notifies the
// build layer for each cache key it touches, and records a durable rebuild
// job in the same transaction so a crash between mutation and rebuild cannot
// strand a stale bundle.
type DocumentService struct {
	docRepo       DocumentRepositoryInterface
	storageClient StorageClientInterface
	notifier      RebuildNotifier
	uuidGen       UUIDGenerator
	txRunner      TxRunner
}

func NewDocumentService(docRepo DocumentRepositoryInterface, storageClient StorageClientInterface, notifier RebuildNotifier) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		storageClient: storageClient,
		notifier:      notifier,
		uuidGen:       &DefaultUUIDGenerator{},
	}
}

func NewDocumentServiceWithTx(docRepo DocumentRepositoryInterface, storageClient StorageClientInterface, notifier RebuildNotifier, txRunner TxRunner) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		storageClient: storageClient,
		notifier:      notifier,
		uuidGen:       &DefaultUUIDGenerator{},
		txRunner:      txRunner,
	}
}

func NewDocumentServiceWithUUIDGen(docRepo DocumentRepositoryInterface, storageClient StorageClientInterface, notifier RebuildNotifier, uuidGen UUIDGenerator) *DocumentService {
	return &DocumentService{
		docRepo:       docRepo,
		storageClient: storageClient,
		notifier:      notifier,
		uuidGen:       uuidGen,
	}
}

type InitUploadInput struct {
	ProjectID   string
	Filename    string
	ContentType string
}

type InitUploadResult struct {
	DocumentID string
	StorageKey string
	UploadURL  string
}

// InitUpload reserves a document ID and storage key and returns a presigned
// upload URL. No document record exists until CompleteUpload.
func (s *DocumentService) InitUpload(ctx context.Context, input InitUploadInput) (*InitUploadResult, error) {
	if input.ProjectID == "" || input.Filename == "" {
		return nil, domain.ErrMissingRequiredField
	}

	documentID := s.uuidGen.NewString()
	storageKey := buildStorageKey(input.ProjectID, documentID, input.Filename)

	uploadURL, err := s.storageClient.GenerateUploadURL(ctx, storageKey, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return &InitUploadResult{
		DocumentID: documentID,
		StorageKey: storageKey,
		UploadURL:  uploadURL,
	}, nil
}

type CompleteUploadInput struct {
	DocumentID   string
	ProjectID    string
	Filename     string
	ContentType  string
	StorageKey   string
	SHA256       string
	Category     domain.DocumentCategory
	Agency       string
	Technologies []string
	Keywords     []string
}

// CompleteUpload verifies the object landed in storage, creates the document
// record, and queues a rebuild for the document's cache key.
func (s *DocumentService) CompleteUpload(ctx context.Context, input CompleteUploadInput) (*domain.Document, error) {
	meta, err := s.storageClient.HeadObject(ctx, input.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to verify uploaded file: %w", err)
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(
		input.DocumentID, input.ProjectID, input.Filename,
		input.Category, input.ContentType, input.StorageKey,
		meta.ContentLength, input.SHA256, now,
	)
	doc.Agency = input.Agency
	doc.Technologies = input.Technologies
	doc.Keywords = input.Keywords

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.mutate(ctx, doc.ProjectID, func(docs DocumentRepositoryInterface) error {
		return docs.Create(ctx, doc)
	}, doc.Category); err != nil {
		return nil, err
	}

	s.notify(doc.ProjectID, doc.Category)
	return doc, nil
}

type UpdateDocumentInput struct {
	Name         *string
	Category     *domain.DocumentCategory
	Agency       *string
	Technologies []string
	Keywords     []string
}

// Update applies metadata changes. A category change moves the document
// between cache keys, so both the old and new key get a rebuild.
func (s *DocumentService) Update(ctx context.Context, documentID string, input UpdateDocumentInput) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	oldCategory := doc.Category
	if input.Name != nil {
		doc.Name = *input.Name
	}
	if input.Category != nil {
		doc.Category = *input.Category
	}
	if input.Agency != nil {
		doc.Agency = *input.Agency
	}
	if input.Technologies != nil {
		doc.Technologies = input.Technologies
	}
	if input.Keywords != nil {
		doc.Keywords = input.Keywords
	}
	doc.UpdatedAt = time.Now().UTC()

	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	categories := []domain.DocumentCategory{doc.Category}
	if oldCategory != doc.Category {
		categories = append(categories, oldCategory)
	}

	if err := s.mutate(ctx, doc.ProjectID, func(docs DocumentRepositoryInterface) error {
		return docs.Update(ctx, doc)
	}, categories...); err != nil {
		return nil, err
	}

	for _, c := range categories {
		s.notify(doc.ProjectID, c)
	}
	return doc, nil
}

// SetStatus archives or restores a document. Archived documents stay in
// storage and remain candidates, ranked below active ones.
func (s *DocumentService) SetStatus(ctx context.Context, documentID string, status domain.DocumentStatus) (*domain.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Status == status {
		return doc, nil
	}

	doc.Status = status
	doc.UpdatedAt = time.Now().UTC()
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	if err := s.mutate(ctx, doc.ProjectID, func(docs DocumentRepositoryInterface) error {
		return docs.Update(ctx, doc)
	}, doc.Category); err != nil {
		return nil, err
	}

	s.notify(doc.ProjectID, doc.Category)
	return doc, nil
}

// Delete removes a document from storage and the database, then queues a
// rebuild for its key.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.storageClient.DeleteObject(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("failed to delete from storage: %w", err)
	}

	if err := s.mutate(ctx, doc.ProjectID, func(docs DocumentRepositoryInterface) error {
		return docs.Delete(ctx, documentID)
	}, doc.Category); err != nil {
		return err
	}

	s.notify(doc.ProjectID, doc.Category)
	return nil
}

func (s *DocumentService) GetByID(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, documentID)
}

func (s *DocumentService) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	return s.docRepo.ListByProject(ctx, projectID)
}

func (s *DocumentService) GetDownloadURL(ctx context.Context, documentID string) (string, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return "", err
	}

	url, err := s.storageClient.GenerateDownloadURL(ctx, doc.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}

	return url, nil
}

// mutate runs a document mutation, and when a TxRunner is configured it also
// enqueues one durable rebuild job per touched cache key in the same
// transaction.
func (s *DocumentService) mutate(ctx context.Context, projectID string, fn func(DocumentRepositoryInterface) error, categories ...domain.DocumentCategory) error {
	if s.txRunner == nil {
		return fn(s.docRepo)
	}

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := fn(repos.Documents()); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, c := range categories {
			job := &domain.RebuildJob{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				Category:  c,
				Status:    domain.RebuildJobStatusPending,
				CreatedAt: now,
			}
			if err := repos.RebuildJobs().Enqueue(ctx, job); err != nil {
				return fmt.Errorf("failed to enqueue rebuild job: %w", err)
			}
		}
		return nil
	})
}

func (s *DocumentService) notify(projectID string, category domain.DocumentCategory) {
	if s.notifier != nil {
		s.notifier.NotifyChange(projectID, category)
	}
}

func buildStorageKey(projectID, documentID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", projectID, documentID, filename)
}
