package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/repository"
)

const (
	defaultAuditPageSize = 20
	maxAuditPageSize     = 100
)

const auditColumns = `id, actor_id, actor_name, action, entity_type, entity_id,
	from_status, to_status, version, changes, metadata, ip_address, user_agent,
	request_id, created_at`

type auditRepository struct {
	BaseRepository
}

func NewAuditRepository(base BaseRepository) repository.AuditRepository {
	return &auditRepository{base}
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
        INSERT INTO audit_logs (` + auditColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `

	_, err := r.GetDB().ExecContext(ctx, query,
		log.ID,
		log.ActorID,
		log.ActorName,
		log.Action,
		log.EntityType,
		log.EntityID,
		log.FromStatus,
		log.ToStatus,
		log.Version,
		nullJSON(log.Changes),
		nullJSON(log.Metadata),
		log.IPAddress,
		log.UserAgent,
		log.RequestID,
		log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func auditWhere(filter model.AuditLogFilter) *where {
	w := &where{}
	if filter.EntityType != "" {
		w.add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != nil {
		w.add("entity_id = $%d", *filter.EntityID)
	}
	if filter.ActorID != "" {
		w.add("actor_id = $%d", filter.ActorID)
	}
	if filter.Action != "" {
		w.add("action = $%d", filter.Action)
	}
	if filter.From != nil {
		w.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at <= $%d", *filter.To)
	}
	return w
}

func (r *auditRepository) ListWithPagination(ctx context.Context, filter model.AuditLogFilter) ([]*model.AuditLog, int64, error) {
	w := auditWhere(filter)

	var total int64
	if err := r.GetDB().GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_logs"+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	size := filter.PageSize
	if size <= 0 {
		size = defaultAuditPageSize
	}
	if size > maxAuditPageSize {
		size = maxAuditPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := "SELECT " + auditColumns + " FROM audit_logs" + w.String() + " ORDER BY created_at DESC"
	query += " LIMIT " + w.next(size) + " OFFSET " + w.next((page-1)*size)

	var logs []*model.AuditLog
	if err := r.GetDB().SelectContext(ctx, &logs, query, w.args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list audit logs: %w", err)
	}

	return logs, total, nil
}

func (r *auditRepository) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error) {
	query := `
        SELECT ` + auditColumns + `
        FROM audit_logs
        WHERE entity_type = $1 AND entity_id = $2
        ORDER BY created_at ASC
    `

	var logs []*model.AuditLog
	if err := r.GetDB().SelectContext(ctx, &logs, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	return logs, nil
}

func (r *auditRepository) GetAggregateStats(ctx context.Context, filter model.AuditLogFilter) (*model.AggregateStats, error) {
	w := auditWhere(filter)

	stats := &model.AggregateStats{
		ActionCounts: make(map[string]int),
		EntityCounts: make(map[string]int),
		ActorCounts:  make(map[string]int),
	}

	if err := r.GetDB().GetContext(ctx, &stats.TotalLogs, "SELECT COUNT(*) FROM audit_logs"+w.String(), w.args...); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	groups := []struct {
		column string
		into   map[string]int
	}{
		{"action", stats.ActionCounts},
		{"entity_type", stats.EntityCounts},
		{"actor_id", stats.ActorCounts},
	}
	for _, g := range groups {
		if err := r.countBy(ctx, g.column, w, g.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (r *auditRepository) countBy(ctx context.Context, column string, w *where, into map[string]int) error {
	query := "SELECT " + column + ", COUNT(*) FROM audit_logs" + w.String() + " GROUP BY " + column
	rows, err := r.GetDB().QueryContext(ctx, query, w.args...)
	if err != nil {
		return fmt.Errorf("failed to count audit logs by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		into[key] = count
	}
	return rows.Err()
}

func (r *auditRepository) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.GetDB().ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}

	return result.RowsAffected()
}

// nullJSON stores empty documents as NULL rather than an invalid jsonb literal.
func nullJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
