package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/repository"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

// Record persists one audit entry. Missing IDs and timestamps are filled in.
func (s *Service) Record(ctx context.Context, entry *model.AuditLog) error {
	if entry == nil {
		return apperrors.BadRequest("audit entry is required", nil)
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filter model.AuditLogFilter) (query.Page[*model.AuditLog], error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return query.Page[*model.AuditLog]{}, apperrors.BadRequest("from is after to", nil)
	}
	if filter.PageSize <= 0 {
		filter.PageSize = query.DefaultPageSize
	}
	if filter.PageSize > query.MaxPageSize {
		filter.PageSize = query.MaxPageSize
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	logs, total, err := s.repo.ListWithPagination(ctx, filter)
	if err != nil {
		return query.Page[*model.AuditLog]{}, apperrors.Internal(err)
	}
	if logs == nil {
		logs = []*model.AuditLog{}
	}
	return query.Page[*model.AuditLog]{
		Items:      logs,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		Total:      int(total),
		TotalPages: query.TotalPages(int(total), filter.PageSize),
	}, nil
}

// History returns every audit entry of one entity, oldest first.
func (s *Service) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error) {
	logs, err := s.repo.History(ctx, entityType, entityID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return logs, nil
}

func (s *Service) GetAggregateStats(ctx context.Context, filter model.AuditLogFilter) (*model.AggregateStats, error) {
	stats, err := s.repo.GetAggregateStats(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return stats, nil
}

func (s *Service) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.Cleanup(ctx, before)
}
