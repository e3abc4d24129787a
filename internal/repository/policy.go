package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propelgov/propelai/internal/domain"
)

// PolicyRepository stores admin-tuned allocation policies per model category.
// When no row exists for a category the built-in default policy is returned,
// so a fresh deployment works without any policy administration.
type PolicyRepository struct {
	pool *pgxpool.Pool
}

func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{pool: pool}
}

func (r *PolicyRepository) GetAllocationPolicy(ctx context.Context, mc domain.ModelCategory) (domain.AllocationPolicy, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM allocation_policies WHERE model_category = $1`,
		mc,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DefaultAllocationPolicy(), nil
		}
		return domain.AllocationPolicy{}, err
	}

	var policy domain.AllocationPolicy
	if err := json.Unmarshal(payload, &policy); err != nil {
		return domain.AllocationPolicy{}, domain.NewDomainErrorWithCause(
			domain.ErrCodeConfiguration, "stored allocation policy is malformed", err)
	}
	return policy, nil
}

// Upsert stores a policy for a model category after validating it, so a
// malformed policy can never reach a build.
func (r *PolicyRepository) Upsert(ctx context.Context, mc domain.ModelCategory, policy domain.AllocationPolicy) error {
	if !domain.IsValidModelCategory(mc) {
		return domain.ErrInvalidModelCategory
	}
	if err := domain.ValidatePolicy(policy); err != nil {
		return err
	}

	payload, err := json.Marshal(policy)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO allocation_policies (model_category, payload, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (model_category)
		 DO UPDATE SET payload = $2, updated_at = $3`,
		mc, payload, time.Now().UTC(),
	)
	return err
}

// Delete removes a stored policy, reverting the category to the default.
func (r *PolicyRepository) Delete(ctx context.Context, mc domain.ModelCategory) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM allocation_policies WHERE model_category = $1`,
		mc,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}
