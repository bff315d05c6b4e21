package models

import "time"

// Bundle is a priced, department-tagged collection of content items.
type Bundle struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	DepartmentID *string   `db:"department_id" json:"departmentId,omitempty"`
	Price        float64   `db:"price" json:"price"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// BundleContent links a bundle to one of its content items.
type BundleContent struct {
	BundleID  string `db:"bundle_id" json:"bundleId"`
	ContentID string `db:"content_id" json:"contentId"`
}
