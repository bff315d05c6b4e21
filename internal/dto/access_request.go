package dto

import (
	"time"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

// SubmitAccessRequest is the payload a user sends to ask for a bundle.
type SubmitAccessRequest struct {
	BundleID   string `json:"bundleId" validate:"required"`
	BundleName string `json:"bundleName" validate:"max=255"`
}

// SubmitAccessResponse summarises a newly submitted request.
type SubmitAccessResponse struct {
	ID          string                     `json:"id"`
	RequestID   string                     `json:"requestId"`
	BundleName  string                     `json:"bundleName"`
	Status      models.AccessRequestStatus `json:"status"`
	RequestedAt time.Time                  `json:"requestedAt"`
}

// ReviewAccessRequest is the admin decision on a pending request.
type ReviewAccessRequest struct {
	Status      models.AccessRequestStatus `json:"status" validate:"required,oneof=approved denied"`
	ReviewNotes string                     `json:"reviewNotes" validate:"max=2000"`
	ExpiryDate  *time.Time                 `json:"expiryDate"`
}

// ReviewAccessResult returns the reviewed request and, on approval, the grant.
type ReviewAccessResult struct {
	Message string               `json:"message"`
	Request models.AccessRequest `json:"request"`
	Grant   *models.AccessGrant  `json:"grant,omitempty"`
}
