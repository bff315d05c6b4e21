package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit appends an audit entry for an admin write. Failures are logged
// and swallowed.
func recordAudit(ctx context.Context, writer auditWriter, logger *zap.Logger, principal models.Principal, action, resource, resourceID string, values interface{}) {
	if writer == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:    &principal.UserID,
		Action:    action,
		Resource:  resource,
		IPAddress: principal.IP,
		UserAgent: principal.UserAgent,
		RequestID: principal.RequestID,
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	if err := writer.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
