package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
	"github.com/noah-isme/qbank-access-api/pkg/response"
)

type entitlementService interface {
	Resolve(ctx context.Context, principal models.Principal, target dto.AccessTarget) (*dto.AccessDecision, error)
	MyAccess(ctx context.Context, principal models.Principal) ([]dto.AccessibleBundle, error)
	Details(ctx context.Context, principal models.Principal, userID, bundleID string) (*models.AccessGrant, error)
	AccessibleContent(ctx context.Context, principal models.Principal) (*dto.AccessibleContent, error)
}

type grantService interface {
	Grant(ctx context.Context, principal models.Principal, req dto.GrantAccessRequest) (*models.AccessGrant, error)
	Revoke(ctx context.Context, principal models.Principal, req dto.RevokeAccessRequest) (*models.AccessGrant, error)
	BulkGrant(ctx context.Context, principal models.Principal, req dto.BulkGrantRequest) (*dto.BulkGrantResult, error)
	List(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessGrantDetail, *models.Pagination, error)
	Stats(ctx context.Context, principal models.Principal) (*models.GrantStats, error)
}

// AccessHandler exposes entitlement checks and grant administration.
type AccessHandler struct {
	entitlements entitlementService
	grants       grantService
}

// NewAccessHandler constructs an access handler.
func NewAccessHandler(entitlements entitlementService, grants grantService) *AccessHandler {
	return &AccessHandler{entitlements: entitlements, grants: grants}
}

// Check godoc
// @Summary Check access
// @Description Resolve whether a user can open a bundle or a content item
// @Tags Access
// @Produce json
// @Param bundleId query string false "Bundle ID"
// @Param contentId query string false "Content ID"
// @Param userId query string false "User to check (admin only for other users)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /access/check [get]
func (h *AccessHandler) Check(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	target := dto.AccessTarget{
		UserID:    strings.TrimSpace(c.Query("userId")),
		BundleID:  strings.TrimSpace(c.Query("bundleId")),
		ContentID: strings.TrimSpace(c.Query("contentId")),
	}
	decision, err := h.entitlements.Resolve(c.Request.Context(), principal, target)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Content godoc
// @Summary Accessible content
// @Description List the content IDs the caller can currently open
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/content [get]
func (h *AccessHandler) Content(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	content, err := h.entitlements.AccessibleContent(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// MyAccess godoc
// @Summary My bundles
// @Description List bundles the caller currently holds
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/my-access [get]
func (h *AccessHandler) MyAccess(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	bundles, err := h.entitlements.MyAccess(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bundles, nil, map[string]interface{}{"count": len(bundles)})
}

// Details godoc
// @Summary Access details
// @Description Return the active grant a user holds on a bundle
// @Tags Access
// @Produce json
// @Param userId path string true "User ID"
// @Param bundleId path string true "Bundle ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /access/details/{userId}/{bundleId} [get]
func (h *AccessHandler) Details(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	grant, err := h.entitlements.Details(c.Request.Context(), principal, c.Param("userId"), c.Param("bundleId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// List godoc
// @Summary List grants
// @Tags Access
// @Produce json
// @Param userId query string false "User ID"
// @Param bundleId query string false "Bundle ID"
// @Param isActive query bool false "Active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /access [get]
func (h *AccessHandler) List(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter, err := accessFilterFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	items, pagination, err := h.grants.List(c.Request.Context(), principal, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, pagination)
}

// Stats godoc
// @Summary Grant statistics
// @Tags Access
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /access/stats [get]
func (h *AccessHandler) Stats(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.grants.Stats(c.Request.Context(), principal)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Grant godoc
// @Summary Grant access
// @Description Create or reactivate a user's grant on a bundle
// @Tags Access
// @Accept json
// @Produce json
// @Param payload body dto.GrantAccessRequest true "Grant payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /access/grant [post]
func (h *AccessHandler) Grant(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grant payload"))
		return
	}
	grant, err := h.grants.Grant(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// Revoke godoc
// @Summary Revoke access
// @Tags Access
// @Accept json
// @Produce json
// @Param payload body dto.RevokeAccessRequest true "Revoke payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /access/revoke [post]
func (h *AccessHandler) Revoke(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RevokeAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid revoke payload"))
		return
	}
	grant, err := h.grants.Revoke(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grant, nil)
}

// BulkGrant godoc
// @Summary Bulk grant access
// @Description Grant one bundle to many users; failures are reported per user
// @Tags Access
// @Accept json
// @Produce json
// @Param payload body dto.BulkGrantRequest true "Bulk grant payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /access/bulk-grant [post]
func (h *AccessHandler) BulkGrant(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.BulkGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk grant payload"))
		return
	}
	result, err := h.grants.BulkGrant(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
