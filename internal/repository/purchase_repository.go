package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

const purchaseColumns = `id, user_id, bundle_id, payment_done, created_at, updated_at`

// PurchaseRepository persists purchase records, one per (user, bundle).
type PurchaseRepository struct {
	db *sqlx.DB
}

// NewPurchaseRepository constructs the repository.
func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// UpsertIntent records an unpaid purchase for the pair. A pair that is already
// paid is left untouched and sql.ErrNoRows is returned.
func (r *PurchaseRepository) UpsertIntent(ctx context.Context, userID, bundleID string) (*models.Purchase, error) {
	now := time.Now().UTC()
	const query = `INSERT INTO purchases (id, user_id, bundle_id, payment_done, created_at, updated_at)
VALUES ($1, $2, $3, FALSE, $4, $4)
ON CONFLICT (user_id, bundle_id)
DO UPDATE SET updated_at = EXCLUDED.updated_at
WHERE purchases.payment_done = FALSE
RETURNING ` + purchaseColumns
	var stored models.Purchase
	if err := r.db.GetContext(ctx, &stored, query, uuid.NewString(), userID, bundleID, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("upsert purchase intent: %w", classify(err))
	}
	return &stored, nil
}

// MarkPaid flips the pair's purchase to completed.
func (r *PurchaseRepository) MarkPaid(ctx context.Context, userID, bundleID string) (*models.Purchase, error) {
	if !validUUIDs(userID, bundleID) {
		return nil, sql.ErrNoRows
	}
	const query = `UPDATE purchases SET payment_done = TRUE, updated_at = $3 WHERE user_id = $1 AND bundle_id = $2 RETURNING ` + purchaseColumns
	var stored models.Purchase
	if err := r.db.GetContext(ctx, &stored, query, userID, bundleID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("mark purchase paid: %w", err)
	}
	return &stored, nil
}

// ListPaidByUser returns the user's completed purchases.
func (r *PurchaseRepository) ListPaidByUser(ctx context.Context, userID string) ([]models.Purchase, error) {
	if !validUUIDs(userID) {
		return []models.Purchase{}, nil
	}
	const query = `SELECT ` + purchaseColumns + ` FROM purchases WHERE user_id = $1 AND payment_done = TRUE ORDER BY updated_at DESC`
	purchases := []models.Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, userID); err != nil {
		return nil, fmt.Errorf("list paid purchases: %w", err)
	}
	return purchases, nil
}
