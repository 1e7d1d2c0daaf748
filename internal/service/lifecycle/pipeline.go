// Package lifecycle carries an entity write from the service layer to the
// backend and back: version-checked backend call, store update, audit record
// and change event. Order and stock movement services share it.
package lifecycle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/store"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

// Backend is the remote collection an entity type is persisted in.
type Backend[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id uuid.UUID) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id uuid.UUID, expected int64, item T) (T, error)
	Delete(ctx context.Context, id uuid.UUID, expected int64) error
	Action(ctx context.Context, id uuid.UUID, action string, expected int64, item T) (T, error)
}

type Auditor interface {
	Record(ctx context.Context, entry *model.AuditLog) error
}

type Emitter interface {
	Emit(ctx context.Context, ev model.ChangeEvent) error
}

// Kind names an entity type in audit records, events and metrics.
type Kind struct {
	Name    string
	Created string
	Updated string
	Deleted string
}

var (
	OrderKind = Kind{
		Name:    model.AuditEntityOrder,
		Created: model.EventOrderCreated,
		Updated: model.EventOrderUpdated,
		Deleted: model.EventOrderDeleted,
	}
	StockMovementKind = Kind{
		Name:    model.AuditEntityStockMovement,
		Created: model.EventStockMovementCreated,
		Updated: model.EventStockMovementUpdated,
		Deleted: model.EventStockMovementDeleted,
	}
)

type Pipeline[T store.Entity] struct {
	kind    Kind
	store   *store.Store[T]
	backend Backend[T]
	auditor Auditor
	emitter Emitter
	clock   query.Clock
	metrics *metrics.Metrics
	log     *logger.Logger
}

type Deps struct {
	Auditor Auditor
	Emitter Emitter
	Clock   query.Clock
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

func NewPipeline[T store.Entity](kind Kind, st *store.Store[T], backend Backend[T], deps Deps) *Pipeline[T] {
	if deps.Clock == nil {
		deps.Clock = query.SystemClock
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Pipeline[T]{
		kind:    kind,
		store:   st,
		backend: backend,
		auditor: deps.Auditor,
		emitter: deps.Emitter,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		log:     deps.Logger.WithFields(map[string]interface{}{"entity": kind.Name}),
	}
}

func (p *Pipeline[T]) Store() *store.Store[T] { return p.store }

func (p *Pipeline[T]) Now() time.Time { return p.clock.Now() }

// Create persists a new entity.
func (p *Pipeline[T]) Create(ctx context.Context, actor model.Actor, item T) (T, error) {
	saved, err := p.backend.Create(ctx, item)
	if err != nil {
		p.metrics.Transitions.WithLabelValues(p.kind.Name, model.AuditActionCreate, "error").Inc()
		var zero T
		return zero, err
	}
	p.put(saved)
	p.metrics.Transitions.WithLabelValues(p.kind.Name, model.AuditActionCreate, "success").Inc()

	p.audit(ctx, actor, model.AuditActionCreate, saved, "", "", map[string]interface{}{"after": saved}, nil)
	p.emit(ctx, actor, p.kind.Created, saved)
	return saved, nil
}

// Update replaces before with after, expecting the backend to still hold
// before's version.
func (p *Pipeline[T]) Update(ctx context.Context, actor model.Actor, before, after T) (T, error) {
	saved, err := p.backend.Update(ctx, before.EntityID(), before.EntityVersion(), after)
	if err != nil {
		return p.failed(ctx, model.AuditActionUpdate, before.EntityID(), err)
	}
	p.put(saved)
	p.metrics.Transitions.WithLabelValues(p.kind.Name, model.AuditActionUpdate, "success").Inc()

	p.audit(ctx, actor, model.AuditActionUpdate, saved, "", "", map[string]interface{}{"before": before, "after": saved}, nil)
	p.emit(ctx, actor, p.kind.Updated, saved)
	return saved, nil
}

// Transition posts a status action. after already carries the new status
// and its history entry.
func (p *Pipeline[T]) Transition(ctx context.Context, actor model.Actor, action string, before, after T, from, to, note string) (T, error) {
	saved, err := p.backend.Action(ctx, before.EntityID(), action, before.EntityVersion(), after)
	if err != nil {
		return p.failed(ctx, action, before.EntityID(), err)
	}
	p.put(saved)
	p.metrics.Transitions.WithLabelValues(p.kind.Name, action, "success").Inc()

	var meta map[string]interface{}
	if note != "" {
		meta = map[string]interface{}{"note": note}
	}
	p.audit(ctx, actor, action, saved, from, to, nil, meta)
	p.emit(ctx, actor, p.kind.Updated, saved)
	return saved, nil
}

// Delete removes item from the backend and the store.
func (p *Pipeline[T]) Delete(ctx context.Context, actor model.Actor, item T) error {
	if err := p.backend.Delete(ctx, item.EntityID(), item.EntityVersion()); err != nil {
		_, err = p.failed(ctx, model.AuditActionDelete, item.EntityID(), err)
		return err
	}
	p.store.Delete(item.EntityID())
	p.metrics.Transitions.WithLabelValues(p.kind.Name, model.AuditActionDelete, "success").Inc()

	p.audit(ctx, actor, model.AuditActionDelete, item, "", "", map[string]interface{}{"before": item}, nil)
	p.emitDeleted(ctx, actor, item)
	return nil
}

// Refresh reloads the whole collection. On failure the store keeps its
// previous contents.
func (p *Pipeline[T]) Refresh(ctx context.Context) (int, error) {
	items, err := p.backend.List(ctx)
	if err != nil {
		p.metrics.StoreRefreshes.WithLabelValues(p.kind.Name, "error").Inc()
		p.log.Error(err, "failed to refresh from backend")
		return 0, err
	}
	changed := p.store.ReplaceAll(items, p.clock.Now())
	p.metrics.StoreRefreshes.WithLabelValues(p.kind.Name, "success").Inc()
	p.metrics.StoreEntities.WithLabelValues(p.kind.Name).Set(float64(p.store.Len()))
	return changed, nil
}

// Apply merges a change event published by another instance. Events for
// other entity types are ignored; stale events lose to the stored copy.
func (p *Pipeline[T]) Apply(ev model.ChangeEvent) error {
	if ev.EntityType != p.kind.Name {
		return nil
	}
	if ev.Type == p.kind.Deleted {
		p.store.DeleteAt(ev.EntityID, ev.Version)
		p.metrics.StoreEntities.WithLabelValues(p.kind.Name).Set(float64(p.store.Len()))
		return nil
	}
	var item T
	if err := json.Unmarshal(ev.Entity, &item); err != nil {
		return apperrors.BadRequest("malformed change event", err)
	}
	p.put(item)
	return nil
}

// failed records a rejected write. A version conflict means the local copy
// is stale, so the current backend state is pulled in before returning.
func (p *Pipeline[T]) failed(ctx context.Context, action string, id uuid.UUID, err error) (T, error) {
	p.metrics.Transitions.WithLabelValues(p.kind.Name, action, "error").Inc()
	if apperrors.Is(err, apperrors.ErrConflict) || apperrors.Is(err, apperrors.ErrNotFound) {
		p.resync(ctx, id)
	}
	var zero T
	return zero, err
}

func (p *Pipeline[T]) resync(ctx context.Context, id uuid.UUID) {
	latest, err := p.backend.Get(ctx, id)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		p.store.Delete(id)
	case err != nil:
		p.log.Warn("failed to resync entity after rejected write", "id", id.String(), "error", err.Error())
	default:
		p.put(latest)
	}
}

func (p *Pipeline[T]) put(item T) {
	if err := p.store.Put(item); err != nil {
		// A newer copy arrived through the event stream first.
		p.log.Debug("kept newer stored copy", "id", item.EntityID().String(), "error", err.Error())
	}
	p.metrics.StoreEntities.WithLabelValues(p.kind.Name).Set(float64(p.store.Len()))
}

func (p *Pipeline[T]) audit(ctx context.Context, actor model.Actor, action string, item T, from, to string, changes, meta interface{}) {
	if p.auditor == nil {
		return
	}
	info := httputil.ClientInfoFromContext(ctx)
	entry := &model.AuditLog{
		ID:         uuid.New(),
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		Action:     action,
		EntityType: p.kind.Name,
		EntityID:   item.EntityID(),
		FromStatus: from,
		ToStatus:   to,
		Version:    item.EntityVersion(),
		Changes:    marshalOrNil(changes),
		Metadata:   marshalOrNil(meta),
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		RequestID:  httputil.RequestIDFromContext(ctx),
		CreatedAt:  p.clock.Now(),
	}
	if err := p.auditor.Record(ctx, entry); err != nil {
		p.log.Error(err, "failed to record audit log", "action", action, "id", item.EntityID().String())
	}
}

func (p *Pipeline[T]) emit(ctx context.Context, actor model.Actor, eventType string, item T) {
	p.send(ctx, model.ChangeEvent{
		Type:       eventType,
		EntityType: p.kind.Name,
		EntityID:   item.EntityID(),
		Version:    item.EntityVersion(),
		Entity:     marshalOrNil(item),
		ActorID:    actor.ID,
		OccurredAt: p.clock.Now(),
	})
}

func (p *Pipeline[T]) emitDeleted(ctx context.Context, actor model.Actor, item T) {
	p.send(ctx, model.ChangeEvent{
		Type:       p.kind.Deleted,
		EntityType: p.kind.Name,
		EntityID:   item.EntityID(),
		Version:    item.EntityVersion(),
		ActorID:    actor.ID,
		OccurredAt: p.clock.Now(),
	})
}

func (p *Pipeline[T]) send(ctx context.Context, ev model.ChangeEvent) {
	if p.emitter == nil {
		return
	}
	if err := p.emitter.Emit(ctx, ev); err != nil {
		p.log.Error(err, "failed to emit change event", "type", ev.Type, "id", ev.EntityID.String())
	}
}

func marshalOrNil(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	if m, ok := v.(map[string]interface{}); ok && m == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
