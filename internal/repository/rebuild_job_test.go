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

func testRebuildJob() *domain.RebuildJob {
	return &domain.RebuildJob{
		ID:        uuid.NewString(),
		ProjectID: uuid.NewString(),
		Category:  domain.DocumentCategoryReference,
		Status:    domain.RebuildJobStatusPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestRebuildJobRepository_EnqueueAndClaim(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRebuildJobRepository(pool)

	job := testRebuildJob()
	require.NoError(t, repo.Enqueue(ctx, job))

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)
	assert.Equal(t, domain.RebuildJobStatusProcessing, claimed[0].Status)

	// A second claim finds nothing pending.
	claimed, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestRebuildJobRepository_ClaimPending_OldestFirst(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRebuildJobRepository(pool)

	older := testRebuildJob()
	older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Microsecond)
	newer := testRebuildJob()
	require.NoError(t, repo.Enqueue(ctx, newer))
	require.NoError(t, repo.Enqueue(ctx, older))

	claimed, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, older.ID, claimed[0].ID)
}

func TestRebuildJobRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRebuildJobRepository(pool)

	job := testRebuildJob()
	require.NoError(t, repo.Enqueue(ctx, job))

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.RebuildJobStatusCompleted, ""))

	var status string
	var processedAt *time.Time
	err := pool.QueryRow(ctx,
		"SELECT status, processed_at FROM rebuild_jobs WHERE id = $1", job.ID,
	).Scan(&status, &processedAt)
	require.NoError(t, err)
	assert.Equal(t, string(domain.RebuildJobStatusCompleted), status)
	assert.NotNil(t, processedAt)
}

func TestRebuildJobRepository_UpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRebuildJobRepository(pool)

	err := repo.UpdateStatus(ctx, uuid.NewString(), domain.RebuildJobStatusCompleted, "")
	assert.ErrorIs(t, err, ErrRebuildJobNotFound)
}

func TestRebuildJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRebuildJobRepository(pool)

	job := testRebuildJob()
	require.NoError(t, repo.Enqueue(ctx, job))
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))

	var retries int
	err := pool.QueryRow(ctx, "SELECT retries FROM rebuild_jobs WHERE id = $1", job.ID).Scan(&retries)
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
}

func TestRebuildJobRepository_DeleteProcessed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewRebuildJobRepository(pool)

	done := testRebuildJob()
	require.NoError(t, repo.Enqueue(ctx, done))
	require.NoError(t, repo.UpdateStatus(ctx, done.ID, domain.RebuildJobStatusCompleted, ""))

	pending := testRebuildJob()
	require.NoError(t, repo.Enqueue(ctx, pending))

	deleted, err := repo.DeleteProcessed(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int
	err = pool.QueryRow(ctx, "SELECT COUNT(*) FROM rebuild_jobs").Scan(&remaining)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}
