package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
)

type entitlementUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type entitlementGrantRepository interface {
	ListValidByUser(ctx context.Context, userID string, now time.Time) ([]models.AccessGrant, error)
	FindByUserBundle(ctx context.Context, userID, bundleID string) (*models.AccessGrant, error)
}

type entitlementPurchaseRepository interface {
	ListPaidByUser(ctx context.Context, userID string) ([]models.Purchase, error)
}

type entitlementCatalog interface {
	Bundles(ctx context.Context, ids []string) ([]models.Bundle, error)
	ContentIDs(ctx context.Context, bundleID string) ([]string, error)
	AllContentIDs(ctx context.Context) ([]string, error)
}

// EntitlementConfig selects the grant sources the resolver consults.
type EntitlementConfig struct {
	PurchaseSource bool
}

// EntitlementService answers whether a user may open a bundle or content item
// right now. Every call re-reads grant state; nothing is memoised.
type EntitlementService struct {
	users     entitlementUserRepository
	grants    entitlementGrantRepository
	purchases entitlementPurchaseRepository
	catalog   entitlementCatalog
	metrics   *MetricsService
	logger    *zap.Logger
	config    EntitlementConfig
	now       func() time.Time
}

// NewEntitlementService constructs the resolver. purchases may be nil when
// purchases are not a grant source.
func NewEntitlementService(users entitlementUserRepository, grants entitlementGrantRepository, purchases entitlementPurchaseRepository, catalog entitlementCatalog, metrics *MetricsService, logger *zap.Logger, config EntitlementConfig) *EntitlementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntitlementService{
		users:     users,
		grants:    grants,
		purchases: purchases,
		catalog:   catalog,
		metrics:   metrics,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// entitlement is a bundle held by a user together with the source that granted it.
type entitlement struct {
	bundleID  string
	source    string
	grantedAt *time.Time
	expiresAt *time.Time
	grantedBy string
	notes     string
}

// Resolve decides whether the target user may open the target bundle or
// content item. Non-admin principals may only resolve their own access.
func (s *EntitlementService) Resolve(ctx context.Context, principal models.Principal, target dto.AccessTarget) (*dto.AccessDecision, error) {
	if target.UserID == "" {
		target.UserID = principal.UserID
	}
	if (target.BundleID == "") == (target.ContentID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of bundleId or contentId is required")
	}
	if target.UserID != principal.UserID && !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot check access for another user")
	}

	user, err := s.loadUser(ctx, target.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	decision := &dto.AccessDecision{
		UserID:    target.UserID,
		BundleID:  target.BundleID,
		ContentID: target.ContentID,
		CheckedAt: now,
	}

	if user.IsAdmin() {
		decision.Granted = true
		decision.Source = dto.SourceAdmin
		decision.Reason = "admin access"
		s.metrics.RecordAccessDecision(true, dto.SourceAdmin)
		return decision, nil
	}

	held, order, err := s.entitlements(ctx, target.UserID, now)
	if err != nil {
		return nil, err
	}

	if target.BundleID != "" {
		if ent, ok := held[target.BundleID]; ok {
			applyEntitlement(decision, ent)
		} else {
			decision.Reason = "no valid access to bundle"
		}
		s.metrics.RecordAccessDecision(decision.Granted, decision.Source)
		return decision, nil
	}

	for _, bundleID := range order {
		contents, err := s.catalog.ContentIDs(ctx, bundleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bundle contents")
		}
		if containsString(contents, target.ContentID) {
			applyEntitlement(decision, held[bundleID])
			decision.ViaBundle = bundleID
			break
		}
	}
	if !decision.Granted {
		decision.Reason = "no valid access to content"
	}
	s.metrics.RecordAccessDecision(decision.Granted, decision.Source)
	return decision, nil
}

// MyAccess lists the bundles the principal currently holds.
func (s *EntitlementService) MyAccess(ctx context.Context, principal models.Principal) ([]dto.AccessibleBundle, error) {
	held, order, err := s.entitlements(ctx, principal.UserID, s.now())
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return []dto.AccessibleBundle{}, nil
	}

	bundles, err := s.catalog.Bundles(ctx, order)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bundles")
	}

	items := make([]dto.AccessibleBundle, 0, len(bundles))
	for _, bundle := range bundles {
		ent := held[bundle.ID]
		items = append(items, dto.AccessibleBundle{
			Bundle: bundle,
			AccessInfo: dto.AccessInfo{
				Source:    ent.source,
				GrantedAt: ent.grantedAt,
				ExpiresAt: ent.expiresAt,
				GrantedBy: ent.grantedBy,
				Notes:     ent.notes,
			},
		})
	}
	return items, nil
}

// Details returns the grant a user holds on a bundle. An inactive or missing
// grant is NotFound; an active grant past its expiry is Forbidden.
func (s *EntitlementService) Details(ctx context.Context, principal models.Principal, userID, bundleID string) (*models.AccessGrant, error) {
	if userID != principal.UserID && !principal.IsAdmin() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view access of another user")
	}

	grant, err := s.grants.FindByUserBundle(ctx, userID, bundleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "access not found or inactive")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access")
	}
	if !grant.IsActive {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "access not found or inactive")
	}
	if grant.IsExpiredAt(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access has expired")
	}
	return grant, nil
}

// AccessibleContent lists the content items the principal can open now.
func (s *EntitlementService) AccessibleContent(ctx context.Context, principal models.Principal) (*dto.AccessibleContent, error) {
	user, err := s.loadUser(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	result := &dto.AccessibleContent{UserID: user.ID, BundleIDs: []string{}, ContentIDs: []string{}}
	if user.IsAdmin() {
		all, err := s.catalog.AllContentIDs(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load contents")
		}
		result.All = true
		result.ContentIDs = all
		return result, nil
	}

	_, order, err := s.entitlements(ctx, user.ID, s.now())
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	for _, bundleID := range order {
		contents, err := s.catalog.ContentIDs(ctx, bundleID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bundle contents")
		}
		result.BundleIDs = append(result.BundleIDs, bundleID)
		for _, id := range contents {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result.ContentIDs = append(result.ContentIDs, id)
		}
	}
	sort.Strings(result.ContentIDs)
	return result, nil
}

func (s *EntitlementService) loadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// entitlements merges valid grants and, when enabled, paid purchases into one
// set keyed by bundle. order lists the bundle IDs in a stable order.
func (s *EntitlementService) entitlements(ctx context.Context, userID string, now time.Time) (map[string]entitlement, []string, error) {
	grants, err := s.grants.ListValidByUser(ctx, userID, now)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load access grants")
	}

	held := make(map[string]entitlement, len(grants))
	var order []string
	for i := range grants {
		g := grants[i]
		// The store filters already; the predicate is re-applied against the same instant.
		if !g.IsValidAt(now) {
			continue
		}
		grantedAt := g.GrantedAt
		held[g.BundleID] = entitlement{
			bundleID:  g.BundleID,
			source:    dto.SourceGrant,
			grantedAt: &grantedAt,
			expiresAt: g.ExpiresAt,
			grantedBy: g.GrantedBy,
			notes:     g.Notes,
		}
		order = append(order, g.BundleID)
	}

	if s.config.PurchaseSource && s.purchases != nil {
		purchases, err := s.purchases.ListPaidByUser(ctx, userID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load purchases")
		}
		for _, p := range purchases {
			current, ok := held[p.BundleID]
			// A purchase never expires, so it only displaces a time-boxed grant.
			if ok && current.expiresAt == nil {
				continue
			}
			paidAt := p.UpdatedAt
			held[p.BundleID] = entitlement{bundleID: p.BundleID, source: dto.SourcePurchase, grantedAt: &paidAt}
			if !ok {
				order = append(order, p.BundleID)
			}
		}
	}

	return held, order, nil
}

func applyEntitlement(decision *dto.AccessDecision, ent entitlement) {
	decision.Granted = true
	decision.Source = ent.source
	decision.ExpiresAt = ent.expiresAt
	if ent.source == dto.SourcePurchase {
		decision.Reason = "bundle purchased"
	} else {
		decision.Reason = "active access grant"
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
