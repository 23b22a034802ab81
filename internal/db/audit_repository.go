package db

import (
	"context"
	"fmt"

	"o3-ttgifts-backend/internal/models"
	"o3-ttgifts-backend/pkg/database"
)

type auditRepository struct {
	logs collection[models.AuditLog]
}

// NewAuditRepository creates an AuditRepository over store.
func NewAuditRepository(store database.Store) AuditRepository {
	return &auditRepository{logs: collection[models.AuditLog]{store: store, name: auditLogsCollection}}
}

func (r *auditRepository) Create(ctx context.Context, logEntry models.AuditLog) error {
	if logEntry.ID == "" {
		logEntry.ID = newID()
	}
	if err := r.logs.create(ctx, logEntry.ID, &logEntry); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) ListRecent(ctx context.Context, limit int) ([]*models.AuditLog, error) {
	return r.logs.find(ctx, database.Query{OrderBy: "timestamp", Descending: true, Limit: limit})
}
