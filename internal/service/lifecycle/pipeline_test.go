package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend/backendtest"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/store"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

type recorder struct {
	mu     sync.Mutex
	audits []*model.AuditLog
	events []model.ChangeEvent
	err    error
}

func (r *recorder) Record(_ context.Context, e *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, e)
	return r.err
}

func (r *recorder) Emit(_ context.Context, ev model.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func setOrderVersion(o *model.Order, v int64) { o.Version = v }

func newPipeline(seed ...model.Order) (*Pipeline[model.Order], *backendtest.Fake[model.Order], *recorder) {
	fake := backendtest.NewFake(setOrderVersion, seed...)
	rec := &recorder{}
	p := NewPipeline(OrderKind, store.New[model.Order]("order"), fake, Deps{
		Auditor: rec,
		Emitter: rec,
		Clock:   query.Fixed(now),
	})
	return p, fake, rec
}

func TestCreateStoresBackendCopyAndRecords(t *testing.T) {
	p, _, rec := newPipeline()
	o := model.Order{Base: model.NewBase(now), OrderNumber: "PO-1"}

	ctx := httputil.WithRequestID(context.Background(), "req-9")
	ctx = httputil.WithClientInfo(ctx, httputil.ClientInfo{IPAddress: "10.0.0.1", UserAgent: "ua"})
	saved, err := p.Create(ctx, model.Actor{ID: "u1", Name: "Ana"}, o)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.Version)

	stored, err := p.Store().Get(o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)

	require.Len(t, rec.audits, 1)
	assert.Equal(t, model.AuditActionCreate, rec.audits[0].Action)
	assert.Equal(t, "req-9", rec.audits[0].RequestID)
	assert.Equal(t, "10.0.0.1", rec.audits[0].IPAddress)
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.EventOrderCreated, rec.events[0].Type)
}

func TestTransitionConflictResyncsStore(t *testing.T) {
	o := model.Order{Base: model.NewBase(now), Status: model.OrderStatusDraft}
	o.Version = 1
	p, fake, rec := newPipeline(o)
	require.NoError(t, p.Store().Put(o))

	// Another client moved the backend ahead.
	remote := o
	remote.Version = 2
	remote.Notes = "changed elsewhere"
	fake.Put(remote)

	next := o.Clone()
	next.Status = model.OrderStatusPendingApproval
	_, err := p.Transition(context.Background(), model.Actor{ID: "u1"}, "submit", o, next, "draft", "pending_approval", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	stored, _ := p.Store().Get(o.ID)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, "changed elsewhere", stored.Notes)
	assert.Empty(t, rec.audits, "rejected writes are not audited")
}

func TestDeleteRemovesFromStore(t *testing.T) {
	o := model.Order{Base: model.NewBase(now)}
	o.Version = 1
	p, _, rec := newPipeline(o)
	require.NoError(t, p.Store().Put(o))

	require.NoError(t, p.Delete(context.Background(), model.Actor{}, o))
	assert.Equal(t, 0, p.Store().Len())
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.EventOrderDeleted, rec.events[0].Type)
	assert.Nil(t, rec.events[0].Entity)
}

func TestLateUpdateEventDoesNotResurrect(t *testing.T) {
	o := model.Order{Base: model.NewBase(now)}
	o.Version = 1
	p, _, _ := newPipeline(o)
	require.NoError(t, p.Store().Put(o))
	require.NoError(t, p.Delete(context.Background(), model.Actor{}, o))

	echo := func(v int64) model.ChangeEvent {
		cp := o
		cp.Version = v
		raw, err := json.Marshal(cp)
		require.NoError(t, err)
		return model.ChangeEvent{Type: model.EventOrderUpdated, EntityType: model.AuditEntityOrder, EntityID: o.ID, Version: v, Entity: raw}
	}

	require.NoError(t, p.Apply(echo(1)))
	assert.Equal(t, 0, p.Store().Len())

	require.NoError(t, p.Apply(echo(2)))
	assert.Equal(t, 1, p.Store().Len(), "a newer version is a real write")
}

func TestDeleteEventBeforeUpdateEvent(t *testing.T) {
	id := uuid.New()
	p, _, _ := newPipeline()

	del := model.ChangeEvent{Type: model.EventOrderDeleted, EntityType: model.AuditEntityOrder, EntityID: id, Version: 3}
	require.NoError(t, p.Apply(del))

	o := model.Order{Base: model.NewBase(now)}
	o.ID = id
	o.Version = 3
	raw, err := json.Marshal(o)
	require.NoError(t, err)
	require.NoError(t, p.Apply(model.ChangeEvent{Type: model.EventOrderUpdated, EntityType: model.AuditEntityOrder, EntityID: id, Version: 3, Entity: raw}))
	assert.Equal(t, 0, p.Store().Len())
}

func TestRefreshFailureKeepsState(t *testing.T) {
	o := model.Order{Base: model.NewBase(now)}
	o.Version = 1
	p, fake, _ := newPipeline(o)

	n, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fake.Err = apperrors.Unavailable(errors.New("down"))
	_, err = p.Refresh(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, p.Store().Len())
}

func TestAuditFailureDoesNotFailWrite(t *testing.T) {
	p, _, rec := newPipeline()
	rec.err = errors.New("db down")

	_, err := p.Create(context.Background(), model.Actor{}, model.Order{Base: model.NewBase(now)})
	assert.NoError(t, err)
}

func TestBulkReportsPerID(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	out := Bulk(context.Background(), []uuid.UUID{a, b, a}, func(_ context.Context, id uuid.UUID) error {
		if id == b {
			return apperrors.IllegalTransition("order", "completed", "cancel")
		}
		return nil
	})

	require.Len(t, out, 2)
	assert.True(t, out[0].Success)
	assert.False(t, out[1].Success)
	assert.Equal(t, 422, out[1].Code)
	assert.Contains(t, out[1].Error, "cannot cancel")
}

func TestBulkStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	out := Bulk(ctx, []uuid.UUID{uuid.New(), uuid.New()}, func(context.Context, uuid.UUID) error {
		calls++
		cancel()
		return nil
	})
	assert.Equal(t, 1, calls)
	assert.True(t, out[0].Success)
	assert.False(t, out[1].Success)
}

func TestValidate(t *testing.T) {
	type req struct {
		Name string `binding:"required"`
		Qty  int    `binding:"gt=0"`
	}
	err := Validate(req{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
	assert.Contains(t, err.Error(), "req.Name failed required")

	assert.NoError(t, Validate(req{Name: "x", Qty: 1}))
}

func TestStatsCacheKeyedByRevision(t *testing.T) {
	c := NewStatsCache[int]("order", time.Minute, nil)
	calls := 0
	compute := func() int { calls++; return calls }

	assert.Equal(t, 1, c.Get(1, now, compute))
	assert.Equal(t, 1, c.Get(1, now.Add(time.Second), compute))
	assert.Equal(t, 2, c.Get(2, now, compute))
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion("order", 0, 5))
	assert.NoError(t, CheckVersion("order", 5, 5))
	assert.True(t, apperrors.Is(CheckVersion("order", 4, 5), apperrors.ErrConflict))
}
