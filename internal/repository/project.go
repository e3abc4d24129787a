package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propelgov/propelai/internal/domain"
	"github.com/propelgov/propelai/internal/pagination"
)

// ProjectRepository handles persistence of projects.
type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO projects (id, name, agency, technologies, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, nullableString(p.Agency), p.Technologies, p.CreatedAt,
	)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	var agency *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, agency, technologies, created_at
		 FROM projects WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Name, &agency, &p.Technologies, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	if agency != nil {
		p.Agency = *agency
	}
	return &p, nil
}

func (r *ProjectRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.Project], error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, agency, technologies, created_at
			 FROM projects
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, agency, technologies, created_at
			 FROM projects
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		var agency *string
		if err := rows.Scan(&p.ID, &p.Name, &agency, &p.Technologies, &p.CreatedAt); err != nil {
			return nil, err
		}
		if agency != nil {
			p.Agency = *agency
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(projects) > limit
	if hasMore {
		projects = projects[:limit]
	}

	var nextCursor string
	if hasMore && len(projects) > 0 {
		last := projects[len(projects)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &pagination.PageResult[*domain.Project]{
		Items:   projects,
		Cursor:  nextCursor,
		HasMore: hasMore,
	}, nil
}

func (r *ProjectRepository) Update(ctx context.Context, p *domain.Project) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE projects SET name = $1, agency = $2, technologies = $3 WHERE id = $4`,
		p.Name, nullableString(p.Agency), p.Technologies, p.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}
