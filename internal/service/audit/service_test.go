package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/repository"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
)

type repo struct {
	repository.AuditRepository
	created []*model.AuditLog
	filter  model.AuditLogFilter
	total   int64
	err     error
}

func (r *repo) Create(_ context.Context, l *model.AuditLog) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, l)
	return nil
}

func (r *repo) ListWithPagination(_ context.Context, f model.AuditLogFilter) ([]*model.AuditLog, int64, error) {
	r.filter = f
	return nil, r.total, r.err
}

func TestRecordFillsIdentity(t *testing.T) {
	r := &repo{}
	svc := NewService(r)

	require.NoError(t, svc.Record(context.Background(), &model.AuditLog{Action: model.AuditActionCreate}))
	require.Len(t, r.created, 1)
	assert.NotEqual(t, uuid.Nil, r.created[0].ID)
	assert.False(t, r.created[0].CreatedAt.IsZero())
}

func TestRecordWrapsStorageErrors(t *testing.T) {
	svc := NewService(&repo{err: errors.New("db down")})
	err := svc.Record(context.Background(), &model.AuditLog{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))
}

func TestListNormalisesPaging(t *testing.T) {
	r := &repo{total: 45}
	svc := NewService(r)

	page, err := svc.List(context.Background(), model.AuditLogFilter{Page: 0, PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 100, r.filter.PageSize)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
	assert.NotNil(t, page.Items)

	page, err = svc.List(context.Background(), model.AuditLogFilter{PageSize: 20, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
}

func TestListRejectsInvertedRange(t *testing.T) {
	from := time.Now()
	to := from.Add(-time.Hour)
	_, err := NewService(&repo{}).List(context.Background(), model.AuditLogFilter{From: &from, To: &to})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}
