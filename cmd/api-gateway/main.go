package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/qbank-access-api/api/swagger"
	"github.com/noah-isme/qbank-access-api/internal/handler"
	"github.com/noah-isme/qbank-access-api/internal/migrations"
	"github.com/noah-isme/qbank-access-api/internal/repository"
	"github.com/noah-isme/qbank-access-api/internal/service"
	"github.com/noah-isme/qbank-access-api/pkg/cache"
	"github.com/noah-isme/qbank-access-api/pkg/config"
	"github.com/noah-isme/qbank-access-api/pkg/database"
	"github.com/noah-isme/qbank-access-api/pkg/logger"
)

// @title Question Bank Access API
// @version 1.0.0
// @description Entitlements, grants, access requests and purchases for question-bank bundles
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := database.NewPostgres(connectCtx, cfg.Database)
	cancelConnect()
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		version, err := database.Migrate(ctx, db.DB, migrations.FS, cfg.Database.MigrationsDialect)
		cancel()
		if err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("database migrated", zap.Int64("version", version))
	}

	var redisClient *redis.Client
	if cfg.Catalog.CacheEnabled {
		redisCtx, cancelRedis := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = cache.NewRedis(redisCtx, cfg.Redis)
		cancelRedis()
		if err != nil {
			logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
			redisClient = nil
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	bundleRepo := repository.NewBundleRepository(db)
	grantRepo := repository.NewAccessGrantRepository(db)
	requestRepo := repository.NewAccessRequestRepository(db)
	purchaseRepo := repository.NewPurchaseRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, redisClient != nil)
	catalogSvc := service.NewCatalogService(bundleRepo, cacheSvc, cfg.Catalog.CacheTTL, logr)
	// Membership may have changed while the service was down.
	catalogSvc.Invalidate(context.Background())

	entitlementSvc := service.NewEntitlementService(userRepo, grantRepo, purchaseRepo, catalogSvc, metricsSvc, logr,
		service.EntitlementConfig{PurchaseSource: cfg.Entitlement.PurchaseSource})
	grantSvc := service.NewGrantService(userRepo, catalogSvc, grantRepo, validate, metricsSvc, logr)
	requestSvc := service.NewAccessRequestService(requestRepo, catalogSvc, userRepo, validate, metricsSvc, logr,
		service.AccessRequestConfig{DefaultValidity: cfg.Entitlement.RequestValidity})
	paymentSvc := service.NewPaymentService(purchaseRepo, catalogSvc, nil, validate, metricsSvc, logr, cfg.Payments.Currency)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	r := newRouter(cfg, logr, routerDeps{
		auth:          authSvc,
		access:        handler.NewAccessHandler(entitlementSvc, grantSvc),
		accessRequest: handler.NewAccessRequestHandler(requestSvc),
		payment:       handler.NewPaymentHandler(paymentSvc),
		authHandler:   handler.NewAuthHandler(authSvc),
		metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"database": db.PingContext,
			"cache":    cacheRepo.Ping,
		}),
		metricsSvc: metricsSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
