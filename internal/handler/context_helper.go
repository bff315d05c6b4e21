package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/middleware"
	"github.com/noah-isme/qbank-access-api/internal/models"
	appErrors "github.com/noah-isme/qbank-access-api/pkg/errors"
	"github.com/noah-isme/qbank-access-api/pkg/middleware/requestid"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// principalFromContext returns the verified caller with request metadata
// attached for auditing.
func principalFromContext(c *gin.Context) (models.Principal, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return models.Principal{}, appErrors.ErrUnauthorized
	}
	principal := claims.Principal()
	principal.IP = c.ClientIP()
	principal.UserAgent = c.GetHeader("User-Agent")
	principal.RequestID = requestid.Value(c)
	return principal, nil
}

// accessFilterFromQuery reads the shared listing query parameters.
func accessFilterFromQuery(c *gin.Context) (dto.AccessFilter, error) {
	filter := dto.AccessFilter{
		UserID:   strings.TrimSpace(c.Query("userId")),
		BundleID: strings.TrimSpace(c.Query("bundleId")),
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.AccessRequestStatus(strings.ToLower(raw))
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("isActive")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "isActive must be a boolean")
		}
		filter.IsActive = &active
	}

	var err error
	if filter.Page, err = intQuery(c, "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = intQuery(c, "limit"); err != nil {
		return filter, err
	}
	return filter.Normalize(), nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return value, nil
}
