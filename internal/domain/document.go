package domain

import (
	"fmt"
	"time"
)

// DocumentCategory represents the type of a project document
type DocumentCategory string

const (
	DocumentCategorySolicitation    DocumentCategory = "solicitation"
	DocumentCategoryRequirements    DocumentCategory = "requirements"
	DocumentCategoryReference       DocumentCategory = "reference"
	DocumentCategoryPastPerformance DocumentCategory = "past_performance"
	DocumentCategoryProposal        DocumentCategory = "proposal"
	DocumentCategoryCompliance      DocumentCategory = "compliance"
	DocumentCategoryMedia           DocumentCategory = "media"
)

// DocumentStatus represents the lifecycle status of a document
type DocumentStatus string

const (
	DocumentStatusActive   DocumentStatus = "active"
	DocumentStatusArchived DocumentStatus = "archived"
)

// Document represents an uploaded project document
type Document struct {
	ID           string
	ProjectID    string
	Name         string
	Category     DocumentCategory
	Status       DocumentStatus
	MimeType     string
	StorageKey   string
	SizeBytes    int64
	SHA256       string
	Agency       string
	Technologies []string
	Keywords     []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewDocument creates a new Document instance
func NewDocument(
	id, projectID, name string,
	category DocumentCategory,
	mimeType, storageKey string,
	sizeBytes int64,
	sha256 string,
	createdAt time.Time,
) *Document {
	return &Document{
		ID:         id,
		ProjectID:  projectID,
		Name:       name,
		Category:   category,
		Status:     DocumentStatusActive,
		MimeType:   mimeType,
		StorageKey: storageKey,
		SizeBytes:  sizeBytes,
		SHA256:     sha256,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.ProjectID == "" {
		return fmt.Errorf("document ProjectID is required")
	}

	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}

	if !IsValidDocumentCategory(d.Category) {
		return fmt.Errorf("document Category is invalid: %s", d.Category)
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}

	return nil
}

// IsValidDocumentCategory checks if a DocumentCategory is valid
func IsValidDocumentCategory(c DocumentCategory) bool {
	switch c {
	case DocumentCategorySolicitation, DocumentCategoryRequirements, DocumentCategoryReference,
		DocumentCategoryPastPerformance, DocumentCategoryProposal, DocumentCategoryCompliance,
		DocumentCategoryMedia:
		return true
	}
	return false
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusActive, DocumentStatusArchived:
		return true
	}
	return false
}
