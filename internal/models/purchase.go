package models

import "time"

// Purchase records a payment attempt for a (user, bundle) pair.
type Purchase struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"userId"`
	BundleID    string    `db:"bundle_id" json:"bundleId"`
	PaymentDone bool      `db:"payment_done" json:"paymentDone"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
