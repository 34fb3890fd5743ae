package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/course-billing-api/internal/models"
	"github.com/noah-isme/course-billing-api/pkg/logger"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// emitAudit records an audit entry for actor. Audit failures are logged and
// never returned: the state transition has already been committed.
func emitAudit(ctx context.Context, audit auditLogger, log *zap.Logger, actor models.Actor, entry *models.AuditLog) {
	if audit == nil || entry == nil {
		return
	}
	if actor.UserID != "" {
		userID := actor.UserID
		entry.UserID = &userID
	}
	entry.IPAddress = "system"
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.ForContext(ctx, log).Warn("failed to persist audit log",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err),
		)
	}
}

func auditPayload(values map[string]interface{}) []byte {
	if len(values) == 0 {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return raw
}
