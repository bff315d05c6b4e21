package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

type paymentServiceMock struct {
	confirmErr error
}

func (m *paymentServiceMock) CreateIntent(ctx context.Context, principal models.Principal, req dto.CreatePaymentIntentRequest) (*dto.PaymentIntentResponse, error) {
	return &dto.PaymentIntentResponse{ClientSecret: "secret", PurchaseID: "p1"}, nil
}

func (m *paymentServiceMock) Confirm(ctx context.Context, principal models.Principal, req dto.ConfirmPaymentRequest) (*models.Purchase, error) {
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	return &models.Purchase{UserID: principal.UserID, BundleID: req.BundleID, PaymentDone: true}, nil
}

func TestPaymentHandlerIntent(t *testing.T) {
	h := NewPaymentHandler(&paymentServiceMock{})
	body, _ := json.Marshal(dto.CreatePaymentIntentRequest{BundleID: "b1"})
	c, w := newTestContext(http.MethodPost, "/payments/intent", body, studentClaims)

	h.Intent(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "secret")
}

func TestPaymentHandlerConfirmFailedPayment(t *testing.T) {
	h := NewPaymentHandler(&paymentServiceMock{confirmErr: appErrors.Clone(appErrors.ErrValidation, "payment not successful")})
	body, _ := json.Marshal(dto.ConfirmPaymentRequest{BundleID: "b1"})
	c, w := newTestContext(http.MethodPost, "/payments/confirm", body, studentClaims)

	h.Confirm(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
