package service

import (
	"context"
	"time"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/pagination"
)

type ProjectRepositoryInterface interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Project], error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
}

// ProjectService owns project lifecycle.
type ProjectService struct {
	projectRepo ProjectRepositoryInterface
	uuidGen     UUIDGenerator
}

func NewProjectService(projectRepo ProjectRepositoryInterface) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

func NewProjectServiceWithUUIDGen(projectRepo ProjectRepositoryInterface, uuidGen UUIDGenerator) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		uuidGen:     uuidGen,
	}
}

type CreateProjectInput struct {
	Name         string
	Agency       string
	Technologies []string
}

func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*domain.Project, error) {
	project := domain.NewProject(s.uuidGen.NewString(), input.Name, input.Agency, input.Technologies, time.Now().UTC())
	if err := domain.ValidateProject(project); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid project", err)
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

func (s *ProjectService) List(ctx context.Context, cursorStr string, limit int) (*pagination.PageResult[*domain.Project], error) {
	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.projectRepo.ListWithCursor(ctx, cursor, limit)
}

type UpdateProjectInput struct {
	Name         *string
	Agency       *string
	Technologies []string
}

func (s *ProjectService) Update(ctx context.Context, id string, input UpdateProjectInput) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		project.Name = *input.Name
	}
	if input.Agency != nil {
		project.Agency = *input.Agency
	}
	if input.Technologies != nil {
		project.Technologies = input.Technologies
	}

	if err := domain.ValidateProject(project); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid project", err)
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	return s.projectRepo.Delete(ctx, id)
}
