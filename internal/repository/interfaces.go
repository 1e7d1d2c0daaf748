package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
)

type (
	// AuditRepository persists audit log entries for entity writes.
	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		ListWithPagination(ctx context.Context, filter model.AuditLogFilter) ([]*model.AuditLog, int64, error)
		History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error)
		GetAggregateStats(ctx context.Context, filter model.AuditLogFilter) (*model.AggregateStats, error)
		Cleanup(ctx context.Context, before time.Time) (int64, error)
	}

	// OutboxRepository stores change events until the worker publishes them.
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
