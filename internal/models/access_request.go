package models

import "time"

// AccessRequestStatus enumerates the states of an access request.
type AccessRequestStatus string

const (
	AccessRequestPending  AccessRequestStatus = "pending"
	AccessRequestApproved AccessRequestStatus = "approved"
	AccessRequestDenied   AccessRequestStatus = "denied"
	// AccessRequestExpired is declared for time-based expiry; no operation
	// currently moves a request into it.
	AccessRequestExpired AccessRequestStatus = "expired"
)

var accessRequestTransitions = map[AccessRequestStatus][]AccessRequestStatus{
	AccessRequestPending: {AccessRequestApproved, AccessRequestDenied},
}

// Valid reports whether s is a known status.
func (s AccessRequestStatus) Valid() bool {
	switch s {
	case AccessRequestPending, AccessRequestApproved, AccessRequestDenied, AccessRequestExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether a review may move a request from s to next.
func (s AccessRequestStatus) CanTransitionTo(next AccessRequestStatus) bool {
	for _, allowed := range accessRequestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Outstanding reports whether the status blocks a new request for the same bundle.
func (s AccessRequestStatus) Outstanding() bool {
	return s == AccessRequestPending || s == AccessRequestApproved
}

// AccessRequest is a user's ask for access to a bundle, reviewed once by an admin.
type AccessRequest struct {
	ID          string              `db:"id" json:"id"`
	RequestID   string              `db:"request_id" json:"requestId"`
	UserID      string              `db:"user_id" json:"userId"`
	BundleID    string              `db:"bundle_id" json:"bundleId"`
	BundleName  string              `db:"bundle_name" json:"bundleName"`
	Status      AccessRequestStatus `db:"status" json:"status"`
	RequestedAt time.Time           `db:"requested_at" json:"requestedAt"`
	ReviewedAt  *time.Time          `db:"reviewed_at" json:"reviewedAt,omitempty"`
	ReviewedBy  *string             `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewNotes *string             `db:"review_notes" json:"reviewNotes,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time           `db:"updated_at" json:"updatedAt"`
}

// AccessRequestDetail is a request joined with requester and reviewer names.
type AccessRequestDetail struct {
	AccessRequest
	UserEmail    string  `db:"user_email" json:"userEmail"`
	Username     string  `db:"username" json:"username"`
	ReviewerName *string `db:"reviewer_name" json:"reviewerName,omitempty"`
}
