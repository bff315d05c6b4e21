package dto

import (
	"time"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// AccessFilter enumerates the filters recognised by grant and request listings.
// Grant listings ignore Status; request listings ignore IsActive.
type AccessFilter struct {
	Status   *models.AccessRequestStatus
	UserID   string
	BundleID string
	IsActive *bool
	Page     int
	Limit    int
}

// Normalize applies the documented paging defaults: page 1, limit 20, limit capped at 100.
func (f AccessFilter) Normalize() AccessFilter {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset returns the row offset for the normalised page.
func (f AccessFilter) Offset() int {
	n := f.Normalize()
	return (n.Page - 1) * n.Limit
}

// GrantAccessRequest is the payload for granting a bundle to a user.
type GrantAccessRequest struct {
	UserID    string     `json:"userId" validate:"required"`
	BundleID  string     `json:"bundleId" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Notes     string     `json:"notes" validate:"max=2000"`
}

// RevokeAccessRequest identifies the grant to deactivate.
type RevokeAccessRequest struct {
	UserID   string `json:"userId" validate:"required"`
	BundleID string `json:"bundleId" validate:"required"`
}

// BulkGrantRequest grants one bundle to many users.
type BulkGrantRequest struct {
	UserIDs   []string   `json:"userIds" validate:"required,min=1,dive,required"`
	BundleID  string     `json:"bundleId" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Notes     string     `json:"notes" validate:"max=2000"`
}

// BulkGrantError reports why a single user in a bulk grant failed.
type BulkGrantError struct {
	UserID string `json:"userId"`
	Error  string `json:"error"`
}

// BulkGrantResult pairs the grants that succeeded with the per-user failures.
type BulkGrantResult struct {
	Message    string               `json:"message"`
	Successful []models.AccessGrant `json:"successful"`
	Errors     []BulkGrantError     `json:"errors"`
}

// AccessTarget names what an entitlement check is about: a bundle or a
// single content item. Exactly one must be set.
type AccessTarget struct {
	UserID    string
	BundleID  string
	ContentID string
}

// Grant sources reported on access decisions.
const (
	SourceAdmin    = "admin"
	SourceGrant    = "grant"
	SourcePurchase = "purchase"
)

// AccessDecision is the outcome of resolving a user's access to a target.
type AccessDecision struct {
	UserID    string     `json:"userId"`
	BundleID  string     `json:"bundleId,omitempty"`
	ContentID string     `json:"contentId,omitempty"`
	Granted   bool       `json:"granted"`
	Reason    string     `json:"reason"`
	Source    string     `json:"source,omitempty"`
	ViaBundle string     `json:"viaBundle,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CheckedAt time.Time  `json:"checkedAt"`
}

// AccessInfo describes how a user came to hold a bundle.
type AccessInfo struct {
	Source    string     `json:"source"`
	GrantedAt *time.Time `json:"grantedAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	GrantedBy string     `json:"grantedBy,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// AccessibleBundle is a bundle the caller can currently open.
type AccessibleBundle struct {
	models.Bundle
	AccessInfo AccessInfo `json:"accessInfo"`
}

// AccessibleContent lists the content items the caller can currently open.
type AccessibleContent struct {
	UserID     string   `json:"userId"`
	All        bool     `json:"all"`
	BundleIDs  []string `json:"bundleIds"`
	ContentIDs []string `json:"contentIds"`
}
