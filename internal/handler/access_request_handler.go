package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
	"github.com/noah-isme/qbank-access-api/pkg/response"
)

type accessRequestService interface {
	Submit(ctx context.Context, principal models.Principal, req dto.SubmitAccessRequest) (*dto.SubmitAccessResponse, error)
	Review(ctx context.Context, principal models.Principal, id string, req dto.ReviewAccessRequest) (*dto.ReviewAccessResult, error)
	ListMine(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessRequestDetail, *models.Pagination, error)
	ListAll(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessRequestDetail, *models.Pagination, error)
}

// AccessRequestHandler serves the request-and-review workflow.
type AccessRequestHandler struct {
	service accessRequestService
}

// NewAccessRequestHandler constructs the handler.
func NewAccessRequestHandler(svc accessRequestService) *AccessRequestHandler {
	return &AccessRequestHandler{service: svc}
}

// Submit godoc
// @Summary Request access
// @Description Ask an admin for access to a bundle
// @Tags Access Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAccessRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /access-requests/request [post]
func (h *AccessRequestHandler) Submit(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SubmitAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid access request payload"))
		return
	}
	res, err := h.service.Submit(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// MyRequests godoc
// @Summary My access requests
// @Tags Access Requests
// @Produce json
// @Param status query string false "pending, approved, denied or expired"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /access-requests/my-requests [get]
func (h *AccessRequestHandler) MyRequests(c *gin.Context) {
	h.list(c, h.service.ListMine)
}

// All godoc
// @Summary All access requests
// @Tags Access Requests
// @Produce json
// @Param status query string false "pending, approved, denied or expired"
// @Param userId query string false "User ID"
// @Param bundleId query string false "Bundle ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /access-requests/all [get]
func (h *AccessRequestHandler) All(c *gin.Context) {
	h.list(c, h.service.ListAll)
}

type requestLister func(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessRequestDetail, *models.Pagination, error)

func (h *AccessRequestHandler) list(c *gin.Context, lister requestLister) {
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
	items, pagination, err := lister(c.Request.Context(), principal, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, pagination)
}

// Review godoc
// @Summary Review access request
// @Description Approve or deny a pending request; approval grants the bundle
// @Tags Access Requests
// @Accept json
// @Produce json
// @Param requestId path string true "Request UUID or REQ code"
// @Param payload body dto.ReviewAccessRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /access-requests/review/{requestId} [put]
func (h *AccessRequestHandler) Review(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ReviewAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	res, err := h.service.Review(c.Request.Context(), principal, c.Param("requestId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
