package service

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	"github.com/noah-isme/qbank-access-api/internal/repository"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

type purchaseRepository interface {
	UpsertIntent(ctx context.Context, userID, bundleID string) (*models.Purchase, error)
	MarkPaid(ctx context.Context, userID, bundleID string) (*models.Purchase, error)
}

// PaymentIntent describes a charge handed to a payment gateway.
type PaymentIntent struct {
	PurchaseID  string
	UserID      string
	BundleID    string
	AmountMinor int64
	Currency    string
}

// PaymentGateway opens a charge with a payment provider and returns the
// secret the client uses to complete it.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, intent PaymentIntent) (string, error)
}

// DummyGateway stands in for a provider when none is configured.
type DummyGateway struct{}

// CreateIntent returns a deterministic placeholder secret.
func (DummyGateway) CreateIntent(_ context.Context, intent PaymentIntent) (string, error) {
	return "dummy_client_secret_" + intent.PurchaseID, nil
}

// PaymentService records purchase intents and confirmations. A confirmed
// purchase is an entitlement source for the resolver.
type PaymentService struct {
	purchases purchaseRepository
	bundles   grantBundleReader
	gateway   PaymentGateway
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	currency  string
}

// NewPaymentService constructs a PaymentService. A nil gateway falls back to DummyGateway.
func NewPaymentService(purchases purchaseRepository, bundles grantBundleReader, gateway PaymentGateway, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, currency string) *PaymentService {
	if gateway == nil {
		gateway = DummyGateway{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "usd"
	}
	return &PaymentService{purchases: purchases, bundles: bundles, gateway: gateway, validator: validate, metrics: metrics, logger: logger, currency: currency}
}

// CreateIntent records an unpaid purchase and opens a charge for the bundle price.
func (s *PaymentService) CreateIntent(ctx context.Context, principal models.Principal, req dto.CreatePaymentIntentRequest) (*dto.PaymentIntentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "bundleId is required")
	}

	bundle, err := s.bundles.Bundle(ctx, req.BundleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bundle not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bundle")
	}

	purchase, err := s.purchases.UpsertIntent(ctx, principal.UserID, bundle.ID)
	s.metrics.RecordAccessMutation("purchase_intent", err)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrConflict, "bundle already purchased")
		case errors.Is(err, repository.ErrMissingReference):
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "user or bundle no longer exists")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record purchase")
		}
	}

	secret, err := s.gateway.CreateIntent(ctx, PaymentIntent{
		PurchaseID:  purchase.ID,
		UserID:      principal.UserID,
		BundleID:    bundle.ID,
		AmountMinor: int64(math.Round(bundle.Price * 100)),
		Currency:    s.currency,
	})
	if err != nil {
		s.logger.Error("payment gateway rejected intent", zap.String("purchase_id", purchase.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment intent")
	}

	return &dto.PaymentIntentResponse{ClientSecret: secret, PurchaseID: purchase.ID}, nil
}

// Confirm marks the principal's purchase of the bundle as paid once the
// provider reports success.
func (s *PaymentService) Confirm(ctx context.Context, principal models.Principal, req dto.ConfirmPaymentRequest) (*models.Purchase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "bundleId is required")
	}
	if !req.Payment {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment not successful")
	}

	purchase, err := s.purchases.MarkPaid(ctx, principal.UserID, req.BundleID)
	s.metrics.RecordAccessMutation("purchase_confirm", err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no purchase intent for this bundle")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm payment")
	}
	return purchase, nil
}
