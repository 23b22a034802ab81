package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"o3-ttgifts-backend/internal/db"
	"o3-ttgifts-backend/internal/models"
)

// auditService implements the AuditService interface.
type auditService struct {
	auditRepo db.AuditRepository
	logger    *zap.Logger
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(auditRepo db.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// CreateAuditLog creates a new audit log entry.
func (s *auditService) CreateAuditLog(ctx context.Context, logEntry models.AuditLog) error {
	if s.auditRepo == nil {
		return fmt.Errorf("AuditRepository not initialized in AuditService")
	}
	if logEntry.Timestamp.IsZero() {
		logEntry.Timestamp = time.Now().UTC()
	}
	if err := s.auditRepo.Create(ctx, logEntry); err != nil {
		return fmt.Errorf("failed to create audit log via repository: %w", err)
	}
	return nil
}

// Record never fails the action it describes.
func (s *auditService) Record(ctx context.Context, actor Actor, action, targetType, targetID string, details map[string]string) {
	entry := models.AuditLog{
		UserID:     actor.UserID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
		Details:    details,
	}
	if err := s.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("Failed to write audit log",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err))
	}
}

func (s *auditService) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	logs, err := s.auditRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
