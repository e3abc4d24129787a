package domain

import (
	"fmt"
	"time"
)

// Project represents a proposal project. Agency and technologies feed the
// metadata-match component of document scoring.
type Project struct {
	ID           string
	Name         string
	Agency       string
	Technologies []string
	CreatedAt    time.Time
}

// NewProject creates a new Project instance
func NewProject(id, name, agency string, technologies []string, createdAt time.Time) *Project {
	return &Project{
		ID:           id,
		Name:         name,
		Agency:       agency,
		Technologies: technologies,
		CreatedAt:    createdAt,
	}
}

// ValidateProject validates a Project instance
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}

	if p.Name == "" {
		return fmt.Errorf("project Name is required")
	}

	return nil
}
