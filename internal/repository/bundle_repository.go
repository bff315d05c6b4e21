package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

const bundleColumns = `id, title, department_id, price, created_at, updated_at`

// BundleRepository reads bundles and their content membership from the catalog.
type BundleRepository struct {
	db *sqlx.DB
}

// NewBundleRepository constructs the repository.
func NewBundleRepository(db *sqlx.DB) *BundleRepository {
	return &BundleRepository{db: db}
}

// FindByID returns a bundle by identifier.
func (r *BundleRepository) FindByID(ctx context.Context, id string) (*models.Bundle, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + bundleColumns + ` FROM bundles WHERE id = $1 LIMIT 1`
	var bundle models.Bundle
	if err := r.db.GetContext(ctx, &bundle, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find bundle by id: %w", err)
	}
	return &bundle, nil
}

// ListByIDs returns the bundles among ids that exist, ordered by title.
func (r *BundleRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Bundle, error) {
	if len(ids) == 0 {
		return []models.Bundle{}, nil
	}
	const query = `SELECT ` + bundleColumns + ` FROM bundles WHERE id = ANY($1::uuid[]) ORDER BY title ASC`
	var bundles []models.Bundle
	if err := r.db.SelectContext(ctx, &bundles, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list bundles by ids: %w", err)
	}
	return bundles, nil
}

// ContentIDs returns the member content IDs of a bundle.
func (r *BundleRepository) ContentIDs(ctx context.Context, bundleID string) ([]string, error) {
	if _, err := uuid.Parse(bundleID); err != nil {
		return []string{}, nil
	}
	const query = `SELECT content_id FROM bundle_contents WHERE bundle_id = $1 ORDER BY content_id`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query, bundleID); err != nil {
		return nil, fmt.Errorf("list bundle contents: %w", err)
	}
	return ids, nil
}

// AllContentIDs returns every content ID referenced by any bundle.
func (r *BundleRepository) AllContentIDs(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT content_id FROM bundle_contents ORDER BY content_id`
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("list all contents: %w", err)
	}
	return ids, nil
}
