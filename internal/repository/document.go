package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propelgov/propelai/internal/domain"
)

const documentColumns = `id, project_id, name, category, status, mime_type, storage_key,
	size_bytes, sha256, agency, technologies, keywords, created_at, updated_at`

// DocumentRepository handles persistence of project documents.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (`+documentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		d.ID, d.ProjectID, d.Name, d.Category, d.Status, d.MimeType, d.StorageKey,
		d.SizeBytes, d.SHA256, nullableString(d.Agency), d.Technologies, d.Keywords,
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`,
		id,
	)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE project_id = $1 ORDER BY created_at DESC, id DESC`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) ListByProjectCategory(ctx context.Context, projectID string, category domain.DocumentCategory) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE project_id = $1 AND category = $2 ORDER BY created_at DESC, id DESC`,
		projectID, category,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocumentRows(rows)
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET name = $1, category = $2, status = $3, mime_type = $4, storage_key = $5,
		     size_bytes = $6, sha256 = $7, agency = $8, technologies = $9, keywords = $10,
		     updated_at = $11
		 WHERE id = $12`,
		d.Name, d.Category, d.Status, d.MimeType, d.StorageKey,
		d.SizeBytes, d.SHA256, nullableString(d.Agency), d.Technologies, d.Keywords,
		d.UpdatedAt, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM documents WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var agency *string
	if err := row.Scan(&d.ID, &d.ProjectID, &d.Name, &d.Category, &d.Status, &d.MimeType,
		&d.StorageKey, &d.SizeBytes, &d.SHA256, &agency, &d.Technologies, &d.Keywords,
		&d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if agency != nil {
		d.Agency = *agency
	}
	return &d, nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}
