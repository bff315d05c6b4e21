package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

type catalogBundleRepository interface {
	FindByID(ctx context.Context, id string) (*models.Bundle, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Bundle, error)
	ContentIDs(ctx context.Context, bundleID string) ([]string, error)
	AllContentIDs(ctx context.Context) ([]string, error)
}

const (
	catalogAllContentsKey = "catalog:contents"
	catalogCachePattern   = "catalog:*"
)

// CatalogService reads bundles and their content membership. Membership lists
// may be served from cache; bundle rows and entitlement state never are.
type CatalogService struct {
	bundles catalogBundleRepository
	cache   *CacheService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCatalogService constructs a catalog service. cache may be nil.
func NewCatalogService(bundles catalogBundleRepository, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{bundles: bundles, cache: cache, ttl: ttl, logger: logger}
}

// Bundle returns a bundle by ID. A missing bundle surfaces as sql.ErrNoRows.
func (s *CatalogService) Bundle(ctx context.Context, id string) (*models.Bundle, error) {
	return s.bundles.FindByID(ctx, id)
}

// Bundles returns the existing bundles among ids.
func (s *CatalogService) Bundles(ctx context.Context, ids []string) ([]models.Bundle, error) {
	return s.bundles.ListByIDs(ctx, ids)
}

// ContentIDs returns the content items that belong to a bundle.
func (s *CatalogService) ContentIDs(ctx context.Context, bundleID string) ([]string, error) {
	key := "catalog:bundle:" + bundleID + ":contents"
	var ids []string
	if hit, _ := s.cache.Get(ctx, key, &ids); hit {
		return ids, nil
	}
	ids, err := s.bundles.ContentIDs(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, ids)
	return ids, nil
}

// AllContentIDs returns every content item referenced by any bundle.
func (s *CatalogService) AllContentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if hit, _ := s.cache.Get(ctx, catalogAllContentsKey, &ids); hit {
		return ids, nil
	}
	ids, err := s.bundles.AllContentIDs(ctx)
	if err != nil {
		return nil, err
	}
	s.store(ctx, catalogAllContentsKey, ids)
	return ids, nil
}

// store caches a membership list. A failed write only costs a later lookup.
func (s *CatalogService) store(ctx context.Context, key string, ids []string) {
	if err := s.cache.Set(ctx, key, ids, s.ttl); err != nil {
		s.logger.Warn("failed to cache catalog membership", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached membership list.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}
