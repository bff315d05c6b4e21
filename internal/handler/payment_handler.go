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

type paymentService interface {
	CreateIntent(ctx context.Context, principal models.Principal, req dto.CreatePaymentIntentRequest) (*dto.PaymentIntentResponse, error)
	Confirm(ctx context.Context, principal models.Principal, req dto.ConfirmPaymentRequest) (*models.Purchase, error)
}

// PaymentHandler exposes bundle purchase endpoints.
type PaymentHandler struct {
	service paymentService
}

// NewPaymentHandler constructs the handler.
func NewPaymentHandler(svc paymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// Intent godoc
// @Summary Create payment intent
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.CreatePaymentIntentRequest true "Intent payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/intent [post]
func (h *PaymentHandler) Intent(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreatePaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment intent payload"))
		return
	}
	res, err := h.service.CreateIntent(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Confirm godoc
// @Summary Confirm payment
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.ConfirmPaymentRequest true "Confirmation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	principal, err := principalFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment confirmation payload"))
		return
	}
	purchase, err := h.service.Confirm(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, purchase, nil)
}
