package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propelgov/propelai/internal/domain"
)

// MockContextProvider is a mock implementation of ContextProviderInterface
type MockContextProvider struct {
	mock.Mock
}

func (m *MockContextProvider) WaitForContext(ctx context.Context, projectID string, category domain.DocumentCategory, mc domain.ModelCategory) (*domain.ContextBundle, error) {
	args := m.Called(ctx, projectID, category, mc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContextBundle), args.Error(1)
}

func (m *MockContextProvider) GetContext(ctx context.Context, projectID string, category domain.DocumentCategory, mc domain.ModelCategory, pins []string) (*ContextResult, error) {
	args := m.Called(ctx, projectID, category, mc, pins)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ContextResult), args.Error(1)
}

// MockTextGenerator is a mock implementation of TextGenerator
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) GenerateText(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	args := m.Called(ctx, system, prompt, maxTokens)
	return args.String(0), args.Error(1)
}

func draftBundle() *domain.ContextBundle {
	return &domain.ContextBundle{
		ProjectID:   "proj-1",
		Category:    domain.DocumentCategorySolicitation,
		TokenCount:  1200,
		Fingerprint: "fp-1",
		Chunks: []domain.SelectedChunk{
			{DocumentID: "doc-a", DocumentName: "solicitation.pdf", ChunkIndex: 0, Label: domain.SectionRequirements, Text: "The contractor shall deliver monthly reports."},
		},
	}
}

func newTestDraftService() (*DraftService, *MockContextProvider, *MockTextGenerator, *MockPolicyProvider) {
	contexts := new(MockContextProvider)
	generator := new(MockTextGenerator)
	policies := new(MockPolicyProvider)
	return NewDraftService(contexts, generator, policies), contexts, generator, policies
}

func TestGenerateDraft_ResolvesCitations(t *testing.T) {
	svc, contexts, generator, policies := newTestDraftService()
	bundle := draftBundle()

	contexts.On("WaitForContext", mock.Anything, "proj-1", domain.DocumentCategorySolicitation, domain.ModelCategoryMedium).
		Return(bundle, nil)
	policies.On("GetAllocationPolicy", mock.Anything, domain.ModelCategoryMedium).
		Return(domain.DefaultAllocationPolicy(), nil)
	generator.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, 6553).
		Return("We will deliver monthly reports [cite:doc-a#0].", nil)

	draft, err := svc.GenerateDraft(context.Background(), DraftRequest{
		ProjectID: "proj-1",
		Category:  domain.DocumentCategorySolicitation,
		Section:   "Management Approach",
	})

	require.NoError(t, err)
	assert.Equal(t, "Management Approach", draft.Section)
	assert.Equal(t, "We will deliver monthly reports [1].", draft.Text)
	require.Len(t, draft.Citations, 1)
	assert.Equal(t, "solicitation.pdf", draft.Citations[0].DocumentName)
	assert.Equal(t, 1200, draft.ContextTokens)
	assert.Equal(t, "fp-1", draft.Fingerprint)
}

func TestGenerateDraft_PromptCarriesCitableHeaders(t *testing.T) {
	svc, contexts, generator, policies := newTestDraftService()
	bundle := draftBundle()

	contexts.On("WaitForContext", mock.Anything, "proj-1", domain.DocumentCategorySolicitation, domain.ModelCategoryMedium).
		Return(bundle, nil)
	policies.On("GetAllocationPolicy", mock.Anything, domain.ModelCategoryMedium).
		Return(domain.DefaultAllocationPolicy(), nil)

	var captured string
	generator.On("GenerateText", mock.Anything, mock.Anything, mock.MatchedBy(func(prompt string) bool {
		captured = prompt
		return true
	}), mock.Anything).Return("text", nil)

	_, err := svc.GenerateDraft(context.Background(), DraftRequest{
		ProjectID:    "proj-1",
		Category:     domain.DocumentCategorySolicitation,
		Section:      "Technical Approach",
		Instructions: "emphasize automation",
	})

	require.NoError(t, err)
	assert.Contains(t, captured, "Section to write: Technical Approach")
	assert.Contains(t, captured, "emphasize automation")
	assert.Contains(t, captured, "[cite:doc-a#0]")
	assert.Contains(t, captured, "The contractor shall deliver monthly reports.")
}

func TestGenerateDraft_MissingSection(t *testing.T) {
	svc, _, _, _ := newTestDraftService()

	_, err := svc.GenerateDraft(context.Background(), DraftRequest{ProjectID: "proj-1", Category: domain.DocumentCategorySolicitation})

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestGenerateDraft_PinsUseUncachedPath(t *testing.T) {
	svc, contexts, generator, policies := newTestDraftService()
	bundle := draftBundle()
	pins := []string{"doc-a"}

	contexts.On("GetContext", mock.Anything, "proj-1", domain.DocumentCategorySolicitation, domain.ModelCategoryMedium, pins).
		Return(&ContextResult{Bundle: bundle, State: domain.BuildStateComplete}, nil)
	policies.On("GetAllocationPolicy", mock.Anything, domain.ModelCategoryMedium).
		Return(domain.DefaultAllocationPolicy(), nil)
	generator.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("text", nil)

	_, err := svc.GenerateDraft(context.Background(), DraftRequest{
		ProjectID: "proj-1",
		Category:  domain.DocumentCategorySolicitation,
		Section:   "Intro",
		Pins:      pins,
	})

	require.NoError(t, err)
	contexts.AssertNotCalled(t, "WaitForContext", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateDraft_GeneratorFailure(t *testing.T) {
	svc, contexts, generator, policies := newTestDraftService()

	contexts.On("WaitForContext", mock.Anything, "proj-1", domain.DocumentCategorySolicitation, domain.ModelCategoryMedium).
		Return(draftBundle(), nil)
	policies.On("GetAllocationPolicy", mock.Anything, domain.ModelCategoryMedium).
		Return(domain.DefaultAllocationPolicy(), nil)
	generator.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("model unavailable"))

	_, err := svc.GenerateDraft(context.Background(), DraftRequest{
		ProjectID: "proj-1",
		Category:  domain.DocumentCategorySolicitation,
		Section:   "Intro",
	})

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeInternalError, domainErr.Code)
}

func TestGenerateDraft_SurfacesOverflowMetadata(t *testing.T) {
	svc, contexts, generator, policies := newTestDraftService()
	bundle := draftBundle()
	bundle.Overflowed = true
	bundle.Recommendation = &domain.OverflowRecommendation{Summary: "2 excluded"}

	contexts.On("WaitForContext", mock.Anything, "proj-1", domain.DocumentCategorySolicitation, domain.ModelCategoryMedium).
		Return(bundle, nil)
	policies.On("GetAllocationPolicy", mock.Anything, domain.ModelCategoryMedium).
		Return(domain.DefaultAllocationPolicy(), nil)
	generator.On("GenerateText", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("text", nil)

	draft, err := svc.GenerateDraft(context.Background(), DraftRequest{
		ProjectID: "proj-1",
		Category:  domain.DocumentCategorySolicitation,
		Section:   "Intro",
	})

	require.NoError(t, err)
	assert.True(t, draft.Overflowed)
	require.NotNil(t, draft.Recommendation)
	assert.Equal(t, "2 excluded", draft.Recommendation.Summary)
}
