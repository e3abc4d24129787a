package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propelgov/propelai/internal/domain"
)

var ErrRebuildJobNotFound = errors.New("rebuild job not found")

// RebuildJobRepository persists durable rebuild markers.
type RebuildJobRepository struct {
	db dbtx
}

func NewRebuildJobRepository(pool *pgxpool.Pool) *RebuildJobRepository {
	return &RebuildJobRepository{db: pool}
}

func NewRebuildJobRepositoryWithTx(tx pgx.Tx) *RebuildJobRepository {
	return &RebuildJobRepository{db: tx}
}

func (r *RebuildJobRepository) Enqueue(ctx context.Context, job *domain.RebuildJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO rebuild_jobs (id, project_id, category, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.ProjectID, job.Category, job.Status, job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	return err
}

// ClaimPending atomically moves up to limit pending jobs to processing and
// returns them. SKIP LOCKED keeps multiple workers from claiming the same
// job.
func (r *RebuildJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.RebuildJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM rebuild_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE rebuild_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE rebuild_jobs.id = cte.id
		 RETURNING rebuild_jobs.id, rebuild_jobs.project_id, rebuild_jobs.category, rebuild_jobs.status,
		           rebuild_jobs.retries, rebuild_jobs.error, rebuild_jobs.created_at, rebuild_jobs.processed_at`,
		domain.RebuildJobStatusPending, limit, domain.RebuildJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.RebuildJob
	for rows.Next() {
		var job domain.RebuildJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.ProjectID, &job.Category, &job.Status,
			&job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *RebuildJobRepository) UpdateStatus(ctx context.Context, id string, status domain.RebuildJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.RebuildJobStatusCompleted || status == domain.RebuildJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE rebuild_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRebuildJobNotFound
	}
	return nil
}

func (r *RebuildJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE rebuild_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrRebuildJobNotFound
	}
	return nil
}

// DeleteProcessed clears completed jobs older than the cutoff.
func (r *RebuildJobRepository) DeleteProcessed(ctx context.Context, before time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM rebuild_jobs WHERE status = $1 AND processed_at < $2`,
		domain.RebuildJobStatusCompleted, before,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
