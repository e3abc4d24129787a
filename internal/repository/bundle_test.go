//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/testutil"
)

func testBundle(projectID string) *domain.ContextBundle {
	return &domain.ContextBundle{
		ProjectID: projectID,
		Category:  domain.DocumentCategoryReference,
		Chunks: []domain.SelectedChunk{
			{DocumentID: "doc-1", DocumentName: "report.pdf", ChunkIndex: 0, Text: "chunk text", TokenCount: 3},
		},
		Text:           "chunk text",
		TokenCount:     3,
		CharacterCount: 10,
		WordCount:      2,
		DocumentCount:  1,
		Fingerprint:    "fp-1",
		BuiltAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestBundleRepository_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewBundleRepository(pool)

	_, err := repo.Get(ctx, uuid.NewString(), domain.DocumentCategoryReference)
	assert.ErrorIs(t, err, domain.ErrBundleNotFound)
}

func TestBundleRepository_SaveCompleteAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewBundleRepository(pool)
	bundle := testBundle(uuid.NewString())

	require.NoError(t, repo.SaveComplete(ctx, bundle))

	rec, err := repo.Get(ctx, bundle.ProjectID, bundle.Category)
	require.NoError(t, err)
	assert.Equal(t, domain.BuildStateComplete, rec.State)
	require.NotNil(t, rec.Bundle)
	assert.Equal(t, "fp-1", rec.Bundle.Fingerprint)
	assert.Equal(t, 3, rec.Bundle.TokenCount)
	require.Len(t, rec.Bundle.Chunks, 1)
	assert.Equal(t, "report.pdf", rec.Bundle.Chunks[0].DocumentName)
}

func TestBundleRepository_SaveComplete_InvalidBundle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewBundleRepository(pool)

	bundle := testBundle(uuid.NewString())
	bundle.Fingerprint = ""
	err := repo.SaveComplete(ctx, bundle)

	require.Error(t, err)
	var domainErr *domain.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domain.ErrCodeValidation, domainErr.Code)
}

func TestBundleRepository_SetBuildingPreservesPayload(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewBundleRepository(pool)
	bundle := testBundle(uuid.NewString())
	require.NoError(t, repo.SaveComplete(ctx, bundle))

	require.NoError(t, repo.SetBuilding(ctx, bundle.ProjectID, bundle.Category))

	rec, err := repo.Get(ctx, bundle.ProjectID, bundle.Category)
	require.NoError(t, err)
	assert.Equal(t, domain.BuildStateBuilding, rec.State)
	require.NotNil(t, rec.Bundle)
	assert.Equal(t, "fp-1", rec.Bundle.Fingerprint)
}

func TestBundleRepository_SetFailedPreservesPayload(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewBundleRepository(pool)
	bundle := testBundle(uuid.NewString())
	require.NoError(t, repo.SaveComplete(ctx, bundle))

	require.NoError(t, repo.SetFailed(ctx, bundle.ProjectID, bundle.Category, "extraction broke"))

	rec, err := repo.Get(ctx, bundle.ProjectID, bundle.Category)
	require.NoError(t, err)
	assert.Equal(t, domain.BuildStateFailed, rec.State)
	assert.Equal(t, "extraction broke", rec.ErrorMessage)
	require.NotNil(t, rec.Bundle)
	assert.Equal(t, "fp-1", rec.Bundle.Fingerprint)
}

func TestBundleRepository_OneRecordPerKey(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewBundleRepository(pool)

	bundle := testBundle(uuid.NewString())
	require.NoError(t, repo.SaveComplete(ctx, bundle))

	replacement := testBundle(bundle.ProjectID)
	replacement.Fingerprint = "fp-2"
	replacement.TokenCount = 7
	require.NoError(t, repo.SaveComplete(ctx, replacement))

	rec, err := repo.Get(ctx, bundle.ProjectID, bundle.Category)
	require.NoError(t, err)
	assert.Equal(t, "fp-2", rec.Bundle.Fingerprint)
	assert.Equal(t, 7, rec.Bundle.TokenCount)

	var count int
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM context_bundles WHERE project_id = $1 AND category = $2",
		bundle.ProjectID, bundle.Category,
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
