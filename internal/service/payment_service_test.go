package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

type recordingGateway struct {
	intents []PaymentIntent
	err     error
}

func (g *recordingGateway) CreateIntent(ctx context.Context, intent PaymentIntent) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.intents = append(g.intents, intent)
	return "pi_secret_" + intent.PurchaseID, nil
}

func TestPaymentIntentAndConfirm(t *testing.T) {
	purchases := newMockPurchaseRepo()
	gateway := &recordingGateway{}
	svc := NewPaymentService(purchases, newMockCatalog(), gateway, nil, nil, zap.NewNop(), "")
	ctx := context.Background()

	intent, err := svc.CreateIntent(ctx, studentPrincipal, dto.CreatePaymentIntentRequest{BundleID: bundleID})
	require.NoError(t, err)
	assert.Equal(t, "pi_secret_"+intent.PurchaseID, intent.ClientSecret)
	require.Len(t, gateway.intents, 1)
	assert.Equal(t, int64(1999), gateway.intents[0].AmountMinor)
	assert.Equal(t, "usd", gateway.intents[0].Currency)

	again, err := svc.CreateIntent(ctx, studentPrincipal, dto.CreatePaymentIntentRequest{BundleID: bundleID})
	require.NoError(t, err)
	assert.Equal(t, intent.PurchaseID, again.PurchaseID)

	purchase, err := svc.Confirm(ctx, studentPrincipal, dto.ConfirmPaymentRequest{BundleID: bundleID, Payment: true})
	require.NoError(t, err)
	assert.True(t, purchase.PaymentDone)

	_, err = svc.CreateIntent(ctx, studentPrincipal, dto.CreatePaymentIntentRequest{BundleID: bundleID})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "bundle already purchased", appErr.Message)
}

func TestPaymentDummyGateway(t *testing.T) {
	svc := NewPaymentService(newMockPurchaseRepo(), newMockCatalog(), nil, nil, nil, nil, "eur")

	intent, err := svc.CreateIntent(context.Background(), studentPrincipal, dto.CreatePaymentIntentRequest{BundleID: bundleTwoID})
	require.NoError(t, err)
	assert.Equal(t, "dummy_client_secret_"+intent.PurchaseID, intent.ClientSecret)
}

func TestPaymentErrors(t *testing.T) {
	purchases := newMockPurchaseRepo()
	gateway := &recordingGateway{}
	svc := NewPaymentService(purchases, newMockCatalog(), gateway, nil, nil, zap.NewNop(), "usd")
	ctx := context.Background()

	_, err := svc.CreateIntent(ctx, studentPrincipal, dto.CreatePaymentIntentRequest{BundleID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Confirm(ctx, studentPrincipal, dto.ConfirmPaymentRequest{BundleID: bundleID, Payment: false})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Confirm(ctx, studentPrincipal, dto.ConfirmPaymentRequest{BundleID: bundleID, Payment: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	gateway.err = errors.New("provider down")
	_, err = svc.CreateIntent(ctx, studentPrincipal, dto.CreatePaymentIntentRequest{BundleID: bundleID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
