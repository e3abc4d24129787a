package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propelgov/propelai/internal/domain"
)

// MockRebuildJobRepository is a mock implementation of RebuildJobRepository
type MockRebuildJobRepository struct {
	mock.Mock
}

func (m *MockRebuildJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.RebuildJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RebuildJob), args.Error(1)
}

func (m *MockRebuildJobRepository) UpdateStatus(ctx context.Context, jobID string, status domain.RebuildJobStatus, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockRebuildJobRepository) IncrementRetries(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

// MockContextBuilder is a mock implementation of ContextBuilder
type MockContextBuilder struct {
	mock.Mock
}

func (m *MockContextBuilder) TriggerBuild(projectID string, category domain.DocumentCategory) {
	m.Called(projectID, category)
}

func pendingJob(id string) *domain.RebuildJob {
	return &domain.RebuildJob{
		ID:        id,
		ProjectID: "proj-1",
		Category:  domain.DocumentCategoryReference,
		Status:    domain.RebuildJobStatusPending,
	}
}

func TestProcessJobs_TriggersBuildAndCompletes(t *testing.T) {
	repo := new(MockRebuildJobRepository)
	builder := new(MockContextBuilder)
	worker := NewRebuildWorker(repo, builder)

	repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.RebuildJob{pendingJob("job-1")}, nil)
	builder.On("TriggerBuild", "proj-1", domain.DocumentCategoryReference).Return()
	repo.On("UpdateStatus", mock.Anything, "job-1", domain.RebuildJobStatusCompleted, "").Return(nil)

	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	builder.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestProcessJobs_NoPendingJobs(t *testing.T) {
	repo := new(MockRebuildJobRepository)
	builder := new(MockContextBuilder)
	worker := NewRebuildWorker(repo, builder)

	repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.RebuildJob{}, nil)

	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	builder.AssertNotCalled(t, "TriggerBuild", mock.Anything, mock.Anything)
}

func TestProcessJobs_ClaimFailure(t *testing.T) {
	repo := new(MockRebuildJobRepository)
	worker := NewRebuildWorker(repo, new(MockContextBuilder))

	repo.On("ClaimPending", mock.Anything, 100).Return(nil, errors.New("db down"))

	err := worker.ProcessJobs(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim pending jobs")
}

func TestProcessJobs_InvalidKeyFailsWithoutBuild(t *testing.T) {
	repo := new(MockRebuildJobRepository)
	builder := new(MockContextBuilder)
	worker := NewRebuildWorker(repo, builder)

	bad := &domain.RebuildJob{ID: "job-2", ProjectID: "proj-1", Category: "nonsense"}
	repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.RebuildJob{bad}, nil)
	repo.On("UpdateStatus", mock.Anything, "job-2", domain.RebuildJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	builder.AssertNotCalled(t, "TriggerBuild", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestProcessJobs_StatusUpdateFailureRequeues(t *testing.T) {
	repo := new(MockRebuildJobRepository)
	builder := new(MockContextBuilder)
	worker := NewRebuildWorker(repo, builder)

	job := pendingJob("job-3")
	repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.RebuildJob{job}, nil)
	builder.On("TriggerBuild", "proj-1", domain.DocumentCategoryReference).Return()
	repo.On("UpdateStatus", mock.Anything, "job-3", domain.RebuildJobStatusCompleted, "").
		Return(errors.New("write failed"))
	repo.On("IncrementRetries", mock.Anything, "job-3").Return(nil)
	repo.On("UpdateStatus", mock.Anything, "job-3", domain.RebuildJobStatusPending, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcessJobs_MaxRetriesExceededMarksFailed(t *testing.T) {
	repo := new(MockRebuildJobRepository)
	builder := new(MockContextBuilder)
	worker := NewRebuildWorker(repo, builder)

	job := pendingJob("job-4")
	job.Retries = MaxRetries - 1
	repo.On("ClaimPending", mock.Anything, 100).Return([]*domain.RebuildJob{job}, nil)
	builder.On("TriggerBuild", "proj-1", domain.DocumentCategoryReference).Return()
	repo.On("UpdateStatus", mock.Anything, "job-4", domain.RebuildJobStatusCompleted, "").
		Return(errors.New("write failed"))
	repo.On("IncrementRetries", mock.Anything, "job-4").Return(nil)
	repo.On("UpdateStatus", mock.Anything, "job-4", domain.RebuildJobStatusFailed, mock.MatchedBy(func(msg string) bool {
		return msg != ""
	})).Return(nil)

	err := worker.ProcessJobs(context.Background())

	require.NoError(t, err)
	repo.AssertExpectations(t)
}
