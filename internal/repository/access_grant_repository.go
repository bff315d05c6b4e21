package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
)

const grantColumns = `id, user_id, bundle_id, granted_by, granted_at, expires_at, is_active, notes, created_at, updated_at`

const upsertGrantQuery = `INSERT INTO access_grants (id, user_id, bundle_id, granted_by, granted_at, expires_at, is_active, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $8)
ON CONFLICT (user_id, bundle_id)
DO UPDATE SET granted_by = EXCLUDED.granted_by, granted_at = EXCLUDED.granted_at, expires_at = EXCLUDED.expires_at,
	is_active = TRUE, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
RETURNING ` + grantColumns

// AccessGrantRepository persists access grants. The (user_id, bundle_id)
// unique constraint keeps a single row per pair.
type AccessGrantRepository struct {
	db *sqlx.DB
}

// NewAccessGrantRepository constructs the repository.
func NewAccessGrantRepository(db *sqlx.DB) *AccessGrantRepository {
	return &AccessGrantRepository{db: db}
}

// Upsert creates the grant or reactivates and overwrites the existing row for the pair.
func (r *AccessGrantRepository) Upsert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	return upsertGrant(ctx, r.db, grant)
}

func upsertGrant(ctx context.Context, q sqlx.QueryerContext, grant *models.AccessGrant) (*models.AccessGrant, error) {
	now := time.Now().UTC()
	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.GrantedAt.IsZero() {
		grant.GrantedAt = now
	}
	var stored models.AccessGrant
	if err := sqlx.GetContext(ctx, q, &stored, upsertGrantQuery,
		grant.ID, grant.UserID, grant.BundleID, grant.GrantedBy, grant.GrantedAt, grant.ExpiresAt, grant.Notes, now); err != nil {
		return nil, fmt.Errorf("upsert access grant: %w", classify(err))
	}
	return &stored, nil
}

// Revoke deactivates the grant for the pair without deleting it.
func (r *AccessGrantRepository) Revoke(ctx context.Context, userID, bundleID string) (*models.AccessGrant, error) {
	if !validUUIDs(userID, bundleID) {
		return nil, sql.ErrNoRows
	}
	const query = `UPDATE access_grants SET is_active = FALSE, updated_at = $3 WHERE user_id = $1 AND bundle_id = $2 RETURNING ` + grantColumns
	var stored models.AccessGrant
	if err := r.db.GetContext(ctx, &stored, query, userID, bundleID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("revoke access grant: %w", err)
	}
	return &stored, nil
}

// FindByUserBundle returns the grant row for the pair regardless of state.
func (r *AccessGrantRepository) FindByUserBundle(ctx context.Context, userID, bundleID string) (*models.AccessGrant, error) {
	if !validUUIDs(userID, bundleID) {
		return nil, sql.ErrNoRows
	}
	const query = `SELECT ` + grantColumns + ` FROM access_grants WHERE user_id = $1 AND bundle_id = $2 LIMIT 1`
	var grant models.AccessGrant
	if err := r.db.GetContext(ctx, &grant, query, userID, bundleID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find access grant: %w", err)
	}
	return &grant, nil
}

// ListValidByUser returns the user's grants that are active and unexpired at now.
func (r *AccessGrantRepository) ListValidByUser(ctx context.Context, userID string, now time.Time) ([]models.AccessGrant, error) {
	if !validUUIDs(userID) {
		return []models.AccessGrant{}, nil
	}
	const query = `SELECT ` + grantColumns + ` FROM access_grants
WHERE user_id = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $2)
ORDER BY granted_at DESC`
	grants := []models.AccessGrant{}
	if err := r.db.SelectContext(ctx, &grants, query, userID, now); err != nil {
		return nil, fmt.Errorf("list valid access grants: %w", err)
	}
	return grants, nil
}

// List returns grants joined with user, bundle and granter display fields.
func (r *AccessGrantRepository) List(ctx context.Context, filter dto.AccessFilter) ([]models.AccessGrantDetail, int, error) {
	filter = filter.Normalize()

	var conditions []string
	var args []interface{}
	if filter.UserID != "" {
		if !validUUIDs(filter.UserID) {
			return []models.AccessGrantDetail{}, 0, nil
		}
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("g.user_id = $%d", len(args)))
	}
	if filter.BundleID != "" {
		if !validUUIDs(filter.BundleID) {
			return []models.AccessGrantDetail{}, 0, nil
		}
		args = append(args, filter.BundleID)
		conditions = append(conditions, fmt.Sprintf("g.bundle_id = $%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		conditions = append(conditions, fmt.Sprintf("g.is_active = $%d", len(args)))
	}

	baseQuery := `FROM access_grants g
JOIN users u ON u.id = g.user_id
JOIN bundles b ON b.id = g.bundle_id
LEFT JOIN users gb ON gb.id = g.granted_by
WHERE 1=1`
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	listQuery := fmt.Sprintf(`SELECT g.id, g.user_id, g.bundle_id, g.granted_by, g.granted_at, g.expires_at, g.is_active, g.notes, g.created_at, g.updated_at,
	u.email AS user_email, u.username AS username, b.title AS bundle_title, b.price AS bundle_price, gb.username AS granted_by_name
%s ORDER BY g.created_at DESC LIMIT %d OFFSET %d`, baseQuery, filter.Limit, filter.Offset())

	items := []models.AccessGrantDetail{}
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list access grants: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count access grants: %w", err)
	}
	return items, total, nil
}

// Stats counts grants by state at now and ranks the five most-granted bundles.
func (r *AccessGrantRepository) Stats(ctx context.Context, now time.Time) (*models.GrantStats, error) {
	const countQuery = `SELECT
	COUNT(*) FILTER (WHERE is_active) AS total_active,
	COUNT(*) FILTER (WHERE NOT is_active) AS total_revoked,
	COUNT(*) FILTER (WHERE is_active AND expires_at IS NOT NULL AND expires_at > $1) AS active_with_expiry,
	COUNT(*) FILTER (WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1) AS expired
FROM access_grants`
	var counts struct {
		TotalActive      int `db:"total_active"`
		TotalRevoked     int `db:"total_revoked"`
		ActiveWithExpiry int `db:"active_with_expiry"`
		Expired          int `db:"expired"`
	}
	if err := r.db.GetContext(ctx, &counts, countQuery, now); err != nil {
		return nil, fmt.Errorf("count grant stats: %w", err)
	}

	const topQuery = `SELECT g.bundle_id, b.title AS bundle_title, b.price AS bundle_price, COUNT(*) AS grant_count
FROM access_grants g
JOIN bundles b ON b.id = g.bundle_id
WHERE g.is_active = TRUE
GROUP BY g.bundle_id, b.title, b.price
ORDER BY grant_count DESC, b.title ASC
LIMIT 5`
	top := []models.BundleGrantRank{}
	if err := r.db.SelectContext(ctx, &top, topQuery); err != nil {
		return nil, fmt.Errorf("rank grant bundles: %w", err)
	}

	return &models.GrantStats{
		TotalActive:      counts.TotalActive,
		TotalRevoked:     counts.TotalRevoked,
		ActiveWithExpiry: counts.ActiveWithExpiry,
		Expired:          counts.Expired,
		TopBundles:       top,
	}, nil
}

func validUUIDs(ids ...string) bool {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return false
		}
	}
	return true
}
