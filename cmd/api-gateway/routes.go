package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/handler"
	"github.com/noah-isme/qbank-access-api/internal/middleware"
	"github.com/noah-isme/qbank-access-api/internal/models"
	"github.com/noah-isme/qbank-access-api/internal/service"
	"github.com/noah-isme/qbank-access-api/pkg/config"
	"github.com/noah-isme/qbank-access-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qbank-access-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/qbank-access-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth          middleware.TokenValidator
	authHandler   *handler.AuthHandler
	access        *handler.AccessHandler
	accessRequest *handler.AccessRequestHandler
	payment       *handler.PaymentHandler
	metrics       *handler.MetricsHandler
	metricsSvc    *service.MetricsService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metricsSvc, "/metrics"))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", deps.authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	access := secured.Group("/access")
	access.GET("/check", deps.access.Check)
	access.GET("/content", deps.access.Content)
	access.GET("/my-access", deps.access.MyAccess)
	access.GET("/details/:userId/:bundleId", middleware.RBAC(string(models.RoleAdmin), middleware.Self), deps.access.Details)
	access.GET("", adminOnly, deps.access.List)
	access.GET("/stats", adminOnly, deps.access.Stats)
	access.POST("/grant", adminOnly, deps.access.Grant)
	access.POST("/revoke", adminOnly, deps.access.Revoke)
	access.POST("/bulk-grant", adminOnly, deps.access.BulkGrant)

	requests := secured.Group("/access-requests")
	requests.POST("/request", deps.accessRequest.Submit)
	requests.GET("/my-requests", deps.accessRequest.MyRequests)
	requests.GET("/all", adminOnly, deps.accessRequest.All)
	requests.PUT("/review/:requestId", adminOnly, deps.accessRequest.Review)

	payments := secured.Group("/payments")
	payments.POST("/intent", deps.payment.Intent)
	payments.POST("/confirm", deps.payment.Confirm)

	secured.GET("/metrics/summary", adminOnly, deps.metrics.Summary)

	return r
}
