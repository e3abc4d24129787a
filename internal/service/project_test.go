package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/pagination"
)

// MockProjectRepository is a mock implementation of ProjectRepositoryInterface
type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, p *domain.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Project), args.Error(1)
}

func (m *MockProjectRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Project], error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.Project]), args.Error(1)
}

func (m *MockProjectRepository) Update(ctx context.Context, p *domain.Project) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProjectRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func TestCreateProject(t *testing.T) {
	repo := new(MockProjectRepository)
	uuidGen := new(MockUUIDGenerator)
	svc := NewProjectServiceWithUUIDGen(repo, uuidGen)

	uuidGen.On("NewString").Return("proj-1")
	repo.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Project) bool {
		return p.ID == "proj-1" && p.Name == "Radar Modernization" && p.Agency == "DARPA"
	})).Return(nil)

	project, err := svc.Create(context.Background(), CreateProjectInput{
		Name:         "Radar Modernization",
		Agency:       "DARPA",
		Technologies: []string{"golang", "kubernetes"},
	})

	require.NoError(t, err)
	assert.Equal(t, "proj-1", project.ID)
	assert.Equal(t, []string{"golang", "kubernetes"}, project.Technologies)
	repo.AssertExpectations(t)
}

func TestCreateProject_MissingName(t *testing.T) {
	repo := new(MockProjectRepository)
	svc := NewProjectService(repo)

	_, err := svc.Create(context.Background(), CreateProjectInput{Agency: "DARPA"})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestListProjects_PassesDecodedCursor(t *testing.T) {
	repo := new(MockProjectRepository)
	svc := NewProjectService(repo)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	encoded := pagination.EncodeCursor("proj-5", ts)
	page := &pagination.PageResult[*domain.Project]{
		Items:   []*domain.Project{domain.NewProject("proj-6", "Next", "", nil, ts)},
		HasMore: false,
	}
	repo.On("ListWithCursor", mock.Anything, mock.MatchedBy(func(c *pagination.Cursor) bool {
		return c != nil && c.LastID == "proj-5" && c.Timestamp.Equal(ts)
	}), 20).Return(page, nil)

	result, err := svc.List(context.Background(), encoded, 20)

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.False(t, result.HasMore)
}

func TestListProjects_InvalidCursor(t *testing.T) {
	repo := new(MockProjectRepository)
	svc := NewProjectService(repo)

	_, err := svc.List(context.Background(), "not-base64!!", 20)

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
	repo.AssertNotCalled(t, "ListWithCursor", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateProject_MergesFields(t *testing.T) {
	repo := new(MockProjectRepository)
	svc := NewProjectService(repo)

	existing := domain.NewProject("proj-1", "Old Name", "GSA", []string{"java"}, time.Now().UTC())
	repo.On("GetByID", mock.Anything, "proj-1").Return(existing, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	newName := "New Name"
	project, err := svc.Update(context.Background(), "proj-1", UpdateProjectInput{
		Name:         &newName,
		Technologies: []string{"golang"},
	})

	require.NoError(t, err)
	assert.Equal(t, "New Name", project.Name)
	assert.Equal(t, "GSA", project.Agency)
	assert.Equal(t, []string{"golang"}, project.Technologies)
}

func TestUpdateProject_RejectsEmptyName(t *testing.T) {
	repo := new(MockProjectRepository)
	svc := NewProjectService(repo)

	existing := domain.NewProject("proj-1", "Old Name", "", nil, time.Now().UTC())
	repo.On("GetByID", mock.Anything, "proj-1").Return(existing, nil)

	empty := ""
	_, err := svc.Update(context.Background(), "proj-1", UpdateProjectInput{Name: &empty})

	require.Error(t, err)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeleteProject(t *testing.T) {
	repo := new(MockProjectRepository)
	svc := NewProjectService(repo)

	repo.On("Delete", mock.Anything, "proj-1").Return(nil)

	err := svc.Delete(context.Background(), "proj-1")

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
