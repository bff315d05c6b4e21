package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	"github.com/noah-isme/qbank-access-api/internal/repository"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

type grantUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type grantBundleReader interface {
	Bundle(ctx context.Context, id string) (*models.Bundle, error)
}

type grantRepository interface {
	Upsert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error)
	Revoke(ctx context.Context, userID, bundleID string) (*models.AccessGrant, error)
	List(ctx context.Context, filter dto.AccessFilter) ([]models.AccessGrantDetail, int, error)
	Stats(ctx context.Context, now time.Time) (*models.GrantStats, error)
}

// GrantService manages access grants on behalf of admins.
type GrantService struct {
	users     grantUserRepository
	bundles   grantBundleReader
	grants    grantRepository
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	now       func() time.Time
}

// NewGrantService constructs a GrantService.
func NewGrantService(users grantUserRepository, bundles grantBundleReader, grants grantRepository, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *GrantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GrantService{
		users:     users,
		bundles:   bundles,
		grants:    grants,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Grant creates the user's grant for the bundle, or reactivates and
// overwrites the existing one.
func (s *GrantService) Grant(ctx context.Context, principal models.Principal, req dto.GrantAccessRequest) (*models.AccessGrant, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can grant access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "userId and bundleId are required")
	}
	if err := s.requireUser(ctx, req.UserID); err != nil {
		return nil, err
	}
	if err := s.requireBundle(ctx, req.BundleID); err != nil {
		return nil, err
	}

	grant, err := s.grants.Upsert(ctx, &models.AccessGrant{
		UserID:    req.UserID,
		BundleID:  req.BundleID,
		GrantedBy: principal.UserID,
		GrantedAt: s.now(),
		ExpiresAt: req.ExpiresAt,
		Notes:     req.Notes,
	})
	s.metrics.RecordAccessMutation("grant", err)
	if err != nil {
		return nil, translateGrantWriteError(err)
	}

	recordAudit(ctx, s.users, s.logger, principal, models.AuditActionAccessGrant, "access_grant", grant.ID, grant)
	return grant, nil
}

// Revoke deactivates the grant for the pair. Revoking an inactive grant
// succeeds; a pair that never had a grant is NotFound.
func (s *GrantService) Revoke(ctx context.Context, principal models.Principal, req dto.RevokeAccessRequest) (*models.AccessGrant, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can revoke access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "userId and bundleId are required")
	}

	grant, err := s.grants.Revoke(ctx, req.UserID, req.BundleID)
	s.metrics.RecordAccessMutation("revoke", err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "access record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke access")
	}

	recordAudit(ctx, s.users, s.logger, principal, models.AuditActionAccessRevoke, "access_grant", grant.ID, grant)
	return grant, nil
}

// BulkGrant grants one bundle to many users. Users are processed one at a
// time; a failure for one user is reported in the result and does not stop
// or undo the others.
func (s *GrantService) BulkGrant(ctx context.Context, principal models.Principal, req dto.BulkGrantRequest) (*dto.BulkGrantResult, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can grant access")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "userIds (array) and bundleId are required")
	}
	if err := s.requireBundle(ctx, req.BundleID); err != nil {
		return nil, err
	}

	result := &dto.BulkGrantResult{
		Successful: []models.AccessGrant{},
		Errors:     []dto.BulkGrantError{},
	}
	for _, userID := range req.UserIDs {
		grant, err := s.grantOne(ctx, principal, userID, req)
		if err != nil {
			result.Errors = append(result.Errors, dto.BulkGrantError{UserID: userID, Error: appErrors.FromError(err).Message})
			continue
		}
		result.Successful = append(result.Successful, *grant)
	}
	result.Message = fmt.Sprintf("Bulk access grant completed. %d successful, %d failed.", len(result.Successful), len(result.Errors))

	recordAudit(ctx, s.users, s.logger, principal, models.AuditActionBulkGrant, "bundle", req.BundleID, map[string]interface{}{
		"userIds":    req.UserIDs,
		"successful": len(result.Successful),
		"failed":     len(result.Errors),
	})
	return result, nil
}

func (s *GrantService) grantOne(ctx context.Context, principal models.Principal, userID string, req dto.BulkGrantRequest) (*models.AccessGrant, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		s.logger.Warn("bulk grant user lookup failed", zap.String("user_id", userID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	grant, err := s.grants.Upsert(ctx, &models.AccessGrant{
		UserID:    userID,
		BundleID:  req.BundleID,
		GrantedBy: principal.UserID,
		GrantedAt: s.now(),
		ExpiresAt: req.ExpiresAt,
		Notes:     req.Notes,
	})
	s.metrics.RecordAccessMutation("bulk_grant", err)
	if err != nil {
		s.logger.Warn("bulk grant item failed", zap.String("user_id", userID), zap.Error(err))
		return nil, translateGrantWriteError(err)
	}
	return grant, nil
}

// List returns a page of grants with display fields.
func (s *GrantService) List(ctx context.Context, principal models.Principal, filter dto.AccessFilter) ([]models.AccessGrantDetail, *models.Pagination, error) {
	if !principal.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can list access grants")
	}
	filter = filter.Normalize()
	items, total, err := s.grants.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list access grants")
	}
	return items, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Stats summarises grant state.
func (s *GrantService) Stats(ctx context.Context, principal models.Principal) (*models.GrantStats, error) {
	if !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can view access statistics")
	}
	stats, err := s.grants.Stats(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute access statistics")
	}
	return stats, nil
}

func (s *GrantService) requireUser(ctx context.Context, userID string) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return nil
}

func (s *GrantService) requireBundle(ctx context.Context, bundleID string) error {
	if _, err := s.bundles.Bundle(ctx, bundleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "bundle not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bundle")
	}
	return nil
}

// translateGrantWriteError maps storage failures of a grant upsert to typed errors.
func translateGrantWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "access already exists for this user and bundle")
	case errors.Is(err, repository.ErrMissingReference):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "user or bundle no longer exists")
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grant access")
	}
}
