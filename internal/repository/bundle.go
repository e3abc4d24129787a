package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/service"
)

// BundleRepository persists one cache record per (project, category) key.
// The bundle payload column holds the last complete bundle and is preserved
// across building and failed states, so a broken rebuild never takes away
// the bundle that was already serving.
type BundleRepository struct {
	db dbtx
}

func NewBundleRepository(pool *pgxpool.Pool) *BundleRepository {
	return &BundleRepository{db: pool}
}

func NewBundleRepositoryWithTx(tx pgx.Tx) *BundleRepository {
	return &BundleRepository{db: tx}
}

func (r *BundleRepository) Get(ctx context.Context, projectID string, category domain.DocumentCategory) (*service.BundleRecord, error) {
	rec := service.BundleRecord{ProjectID: projectID, Category: category}
	var payload []byte
	var errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT state, payload, error_message, updated_at
		 FROM context_bundles WHERE project_id = $1 AND category = $2`,
		projectID, category,
	).Scan(&rec.State, &payload, &errMsg, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBundleNotFound
		}
		return nil, err
	}

	if len(payload) > 0 {
		var bundle domain.ContextBundle
		if err := json.Unmarshal(payload, &bundle); err != nil {
			return nil, err
		}
		rec.Bundle = &bundle
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	return &rec, nil
}

func (r *BundleRepository) SetBuilding(ctx context.Context, projectID string, category domain.DocumentCategory) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO context_bundles (project_id, category, state, error_message, updated_at)
		 VALUES ($1, $2, $3, NULL, $4)
		 ON CONFLICT (project_id, category)
		 DO UPDATE SET state = $3, error_message = NULL, updated_at = $4`,
		projectID, category, domain.BuildStateBuilding, time.Now().UTC(),
	)
	return err
}

func (r *BundleRepository) SaveComplete(ctx context.Context, bundle *domain.ContextBundle) error {
	if err := domain.ValidateBundle(bundle); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid bundle", err)
	}

	payload, err := json.Marshal(bundle)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO context_bundles (project_id, category, state, payload, error_message, updated_at)
		 VALUES ($1, $2, $3, $4, NULL, $5)
		 ON CONFLICT (project_id, category)
		 DO UPDATE SET state = $3, payload = $4, error_message = NULL, updated_at = $5`,
		bundle.ProjectID, bundle.Category, domain.BuildStateComplete, payload, time.Now().UTC(),
	)
	return err
}

func (r *BundleRepository) SetFailed(ctx context.Context, projectID string, category domain.DocumentCategory, errMsg string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO context_bundles (project_id, category, state, error_message, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (project_id, category)
		 DO UPDATE SET state = $3, error_message = $4, updated_at = $5`,
		projectID, category, domain.BuildStateFailed, nullableString(errMsg), time.Now().UTC(),
	)
	return err
}
