package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	"github.com/noah-isme/qbank-access-api/internal/repository"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

const (
	requestIDConstraint   = "access_requests_request_id_key"
	requestIDAttempts     = 3
	requestIDSuffixLength = 5
	requestIDAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

type accessRequestRepository interface {
	Submit(ctx context.Context, req *models.AccessRequest) (*models.AccessRequest, error)
	FindByID(ctx context.Context, id string) (*models.AccessRequest, error)
	FindByRequestID(ctx context.Context, requestID string) (*models.AccessRequest, error)
	FindByUserBundle(ctx context.Context, userID, bundleID string) (*models.AccessRequest, error)
	Review(ctx context.Context, params repository.ReviewParams, grant *models.AccessGrant) (*models.AccessRequest, *models.AccessGrant, error)
	List(ctx context.Context, filter dto.AccessFilter) ([]models.AccessRequestDetail, int, error)
}

// AccessRequestConfig tunes the request workflow.
type AccessRequestConfig struct {
	// DefaultValidity is the grant window used when an approval carries no expiry.
	DefaultValidity time.Duration
}

// AccessRequestService runs the submit and review workflow for access requests.
type AccessRequestService struct {
	repo      accessRequestRepository
	bundles   grantBundleReader
	audit     auditWriter
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    AccessRequestConfig
	now       func() time.Time
}

// NewAccessRequestService constructs the workflow service.
func NewAccessRequestService(repo accessRequestRepository, bundles grantBundleReader, audit auditWriter, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, config AccessRequestConfig) *AccessRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultValidity <= 0 {
		config.DefaultValidity = 365 * 24 * time.Hour
	}
	return &AccessRequestService{
		repo:      repo,
		bundles:   bundles,
		audit:     audit,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit files a pending request by the principal for a bundle.
func (s *AccessRequestService) Submit(ctx context.Context, principal models.Principal, req dto.SubmitAccessRequest) (*dto.SubmitAccessResponse, error) {
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

	name := strings.TrimSpace(req.BundleName)
	if name == "" {
		name = bundle.Title
	}

	for attempt := 0; attempt < requestIDAttempts; attempt++ {
		now := s.now()
		requestID, err := generateRequestID(now)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate request id")
		}

		stored, err := s.repo.Submit(ctx, &models.AccessRequest{
			ID:          uuid.NewString(),
			RequestID:   requestID,
			UserID:      principal.UserID,
			BundleID:    bundle.ID,
			BundleName:  name,
			RequestedAt: now,
		})
		switch {
		case err == nil:
			s.metrics.RecordAccessMutation("request_submit", nil)
			return &dto.SubmitAccessResponse{
				ID:          stored.ID,
				RequestID:   stored.RequestID,
				BundleName:  stored.BundleName,
				Status:      stored.Status,
				RequestedAt: stored.RequestedAt,
			}, nil
		case errors.Is(err, sql.ErrNoRows):
			s.metrics.RecordAccessMutation("request_submit", err)
			return nil, s.outstandingConflict(ctx, principal.UserID, bundle.ID)
		case errors.Is(err, repository.ErrDuplicate) && repository.ConstraintOf(err) == requestIDConstraint:
			s.logger.Warn("request id collision, retrying", zap.String("request_id", requestID))
			continue
		case errors.Is(err, repository.ErrDuplicate):
			s.metrics.RecordAccessMutation("request_submit", err)
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "You have already requested access to this bundle")
		case errors.Is(err, repository.ErrMissingReference):
			s.metrics.RecordAccessMutation("request_submit", err)
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "user or bundle no longer exists")
		default:
			s.metrics.RecordAccessMutation("request_submit", err)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit access request")
		}
	}

	return nil, appErrors.Clone(appErrors.ErrInternal, "failed to allocate a unique request id")
}

// outstandingConflict explains why a submission was rejected by the existing row.
func (s *AccessRequestService) outstandingConflict(ctx context.Context, userID, bundleID string) error {
	existing, err := s.repo.FindByUserBundle(ctx, userID, bundleID)
	if err != nil {
		s.logger.Warn("failed to load conflicting access request", zap.Error(err))
		return appErrors.Clone(appErrors.ErrConflict, "You have already requested access to this bundle")
	}
	switch {
	case existing.Status == models.AccessRequestApproved:
		return appErrors.Clone(appErrors.ErrConflict, "You already have access to this bundle")
	case existing.Status.Outstanding():
		return appErrors.Clone(appErrors.ErrConflict, "You have already requested access to this bundle. Please wait for admin approval.")
	default:
		// The row was reviewed between the upsert and this read.
		return appErrors.Clone(appErrors.ErrConflict, "Your request changed while it was being submitted. Please try again.")
	}
}

// Review applies an admin decision to a pending request. id may be the row
// UUID or the human-readable request identifier. Approval writes the request
// and the grant in one transaction.
func (s *AccessRequestService) Review(ctx context.Context, principal models.Principal, id string, req dto.ReviewAccessRequest) (*dto.ReviewAccessResult, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can review access requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be either approved or denied")
	}

	existing, err := s.find(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "access request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access request")
	}
	if !existing.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "this request has already been reviewed")
	}

	now := s.now()
	params := repository.ReviewParams{
		ID:         existing.ID,
		From:       existing.Status,
		To:         req.Status,
		ReviewerID: principal.UserID,
		ReviewedAt: now,
	}
	if notes := strings.TrimSpace(req.ReviewNotes); notes != "" {
		params.Notes = &notes
	}

	var grant *models.AccessGrant
	if req.Status == models.AccessRequestApproved {
		expiry := now.Add(s.config.DefaultValidity)
		if req.ExpiryDate != nil {
			expiry = req.ExpiryDate.UTC()
		}
		grant = &models.AccessGrant{
			UserID:    existing.UserID,
			BundleID:  existing.BundleID,
			GrantedBy: principal.UserID,
			GrantedAt: now,
			ExpiresAt: &expiry,
			Notes:     "Auto-granted from access request " + existing.RequestID,
		}
	}

	reviewed, stored, err := s.repo.Review(ctx, params, grant)
	s.metrics.RecordAccessMutation("request_review", err)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "this request has already been reviewed")
		case errors.Is(err, repository.ErrDuplicate), errors.Is(err, repository.ErrMissingReference):
			return nil, translateGrantWriteError(err)
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review access request")
		}
	}

	recordAudit(ctx, s.audit, s.logger, principal, models.AuditActionRequestReview, "access_request", reviewed.ID, map[string]interface{}{
		"requestId": reviewed.RequestID,
		"status":    reviewed.Status,
	})

	return &dto.ReviewAccessResult{
		Message: fmt.Sprintf("Access request %s successfully", reviewed.Status),
		Request: *reviewed,
		Grant:   stored,
	}, nil
}

// ListMine returns the principal's own requests, optionally filtered by status.
func (s *AccessRequestService) ListMine(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessRequestDetail, *models.Pagination, error) {
	filter.UserID = principal.UserID
	filter.BundleID = ""
	return s.list(ctx, filter)
}

// ListAll returns requests across all users. Admin only.
func (s *AccessRequestService) ListAll(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessRequestDetail, *models.Pagination, error) {
	if !principal.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can list all access requests")
	}
	return s.list(ctx, filter)
}

func (s *AccessRequestService) list(ctx context.Context, filter dto.AccessFilter) ([]models.AccessRequestDetail, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
	}
	filter = filter.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access requests")
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *AccessRequestService) find(ctx context.Context, id string) (*models.AccessRequest, error) {
	if _, err := uuid.Parse(id); err == nil {
		return s.repo.FindByID(ctx, id)
	}
	return s.repo.FindByRequestID(ctx, id)
}

// generateRequestID returns REQ-<base36 millis>-<random base36>, upper case.
func generateRequestID(now time.Time) (string, error) {
	suffix := make([]byte, requestIDSuffixLength)
	max := big.NewInt(int64(len(requestIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = requestIDAlphabet[n.Int64()]
	}
	return strings.ToUpper("REQ-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + string(suffix)), nil
}
