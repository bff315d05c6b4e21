package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
)

const requestColumns = `id, request_id, user_id, bundle_id, bundle_name, status, requested_at, reviewed_at, reviewed_by, review_notes, created_at, updated_at`

// AccessRequestRepository persists access requests. Each (user_id, bundle_id)
// pair owns a single row that is reused across request cycles.
type AccessRequestRepository struct {
	db *sqlx.DB
}

// NewAccessRequestRepository constructs the repository.
func NewAccessRequestRepository(db *sqlx.DB) *AccessRequestRepository {
	return &AccessRequestRepository{db: db}
}

// Submit stores a pending request. When the pair already has a denied or
// expired row, that row is reset to pending; a pending or approved row is left
// untouched and sql.ErrNoRows is returned.
func (r *AccessRequestRepository) Submit(ctx context.Context, req *models.AccessRequest) (*models.AccessRequest, error) {
	now := time.Now().UTC()
	if req.RequestedAt.IsZero() {
		req.RequestedAt = now
	}
	const query = `INSERT INTO access_requests (id, request_id, user_id, bundle_id, bundle_name, status, requested_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $7)
ON CONFLICT (user_id, bundle_id)
DO UPDATE SET request_id = EXCLUDED.request_id, bundle_name = EXCLUDED.bundle_name, status = 'pending',
	requested_at = EXCLUDED.requested_at, reviewed_at = NULL, reviewed_by = NULL, review_notes = NULL, updated_at = EXCLUDED.updated_at
WHERE access_requests.status IN ('denied', 'expired')
RETURNING ` + requestColumns

	var stored models.AccessRequest
	if err := r.db.GetContext(ctx, &stored, query, req.ID, req.RequestID, req.UserID, req.BundleID, req.BundleName, req.RequestedAt, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("submit access request: %w", classify(err))
	}
	return &stored, nil
}

// FindByID returns a request by its row identifier.
func (r *AccessRequestRepository) FindByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	if !validUUIDs(id) {
		return nil, sql.ErrNoRows
	}
	return r.findOne(ctx, "id = $1", id)
}

// FindByRequestID returns a request by its human-readable identifier.
func (r *AccessRequestRepository) FindByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	return r.findOne(ctx, "request_id = $1", strings.ToUpper(requestID))
}

// FindByUserBundle returns the request row for the pair.
func (r *AccessRequestRepository) FindByUserBundle(ctx context.Context, userID, bundleID string) (*models.AccessRequest, error) {
	if !validUUIDs(userID, bundleID) {
		return nil, sql.ErrNoRows
	}
	return r.findOne(ctx, "user_id = $1 AND bundle_id = $2", userID, bundleID)
}

func (r *AccessRequestRepository) findOne(ctx context.Context, where string, args ...interface{}) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE ` + where + ` LIMIT 1`
	var req models.AccessRequest
	if err := r.db.GetContext(ctx, &req, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find access request: %w", err)
	}
	return &req, nil
}

// ReviewParams describes a single review decision.
type ReviewParams struct {
	ID         string
	From       models.AccessRequestStatus
	To         models.AccessRequestStatus
	ReviewerID string
	Notes      *string
	ReviewedAt time.Time
}

// Review moves the request from params.From to params.To and, when grant is
// non-nil, upserts it in the same transaction. ErrStaleState is returned when
// the row is no longer in params.From.
func (r *AccessRequestRepository) Review(ctx context.Context, params ReviewParams, grant *models.AccessGrant) (req *models.AccessRequest, stored *models.AccessGrant, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin review transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE access_requests
SET status = $3, reviewed_at = $4, reviewed_by = $5, review_notes = $6, updated_at = $4
WHERE id = $1 AND status = $2
RETURNING ` + requestColumns
	var updated models.AccessRequest
	if err = tx.GetContext(ctx, &updated, updateQuery, params.ID, params.From, params.To, params.ReviewedAt, params.ReviewerID, params.Notes); err != nil {
		if err == sql.ErrNoRows {
			err = ErrStaleState
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("update access request: %w", classify(err))
	}

	if grant != nil {
		if stored, err = upsertGrant(ctx, tx, grant); err != nil {
			return nil, nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review transaction: %w", err)
	}
	return &updated, stored, nil
}

// List returns requests joined with requester and reviewer names.
func (r *AccessRequestRepository) List(ctx context.Context, filter dto.AccessFilter) ([]models.AccessRequestDetail, int, error) {
	filter = filter.Normalize()

	var conditions []string
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("ar.status = $%d", len(args)))
	}
	if filter.UserID != "" {
		if !validUUIDs(filter.UserID) {
			return []models.AccessRequestDetail{}, 0, nil
		}
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("ar.user_id = $%d", len(args)))
	}
	if filter.BundleID != "" {
		if !validUUIDs(filter.BundleID) {
			return []models.AccessRequestDetail{}, 0, nil
		}
		args = append(args, filter.BundleID)
		conditions = append(conditions, fmt.Sprintf("ar.bundle_id = $%d", len(args)))
	}

	baseQuery := `FROM access_requests ar
JOIN users u ON u.id = ar.user_id
LEFT JOIN users rv ON rv.id = ar.reviewed_by
WHERE 1=1`
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	listQuery := fmt.Sprintf(`SELECT ar.id, ar.request_id, ar.user_id, ar.bundle_id, ar.bundle_name, ar.status, ar.requested_at, ar.reviewed_at, ar.reviewed_by, ar.review_notes, ar.created_at, ar.updated_at,
	u.email AS user_email, u.username AS username, rv.username AS reviewer_name
%s ORDER BY ar.requested_at DESC LIMIT %d OFFSET %d`, baseQuery, filter.Limit, filter.Offset())

	items := []models.AccessRequestDetail{}
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list access requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count access requests: %w", err)
	}
	return items, total, nil
}
