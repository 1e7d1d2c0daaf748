// Package stockmovement implements stock movement views, stats and approval.
package stockmovement

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/lifecycle"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/store"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/logger"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

var transitions = map[Action]struct {
	from []model.MovementStatus
	to   model.MovementStatus
}{
	ActionApprove:  {from: []model.MovementStatus{model.MovementStatusPending}, to: model.MovementStatusApproved},
	ActionReject:   {from: []model.MovementStatus{model.MovementStatusPending}, to: model.MovementStatusRejected},
	ActionComplete: {from: []model.MovementStatus{model.MovementStatusApproved}, to: model.MovementStatusCompleted},
	ActionCancel:   {from: []model.MovementStatus{model.MovementStatusPending, model.MovementStatusApproved}, to: model.MovementStatusCancelled},
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", apperrors.BadRequest(fmt.Sprintf("unknown stock movement action %q", s), nil)
	}
	return a, nil
}

func CanTransition(from model.MovementStatus, action Action) bool {
	t, ok := transitions[action]
	return ok && slices.Contains(t.from, from)
}

// AvailableActions lists the actions legal from status.
func AvailableActions(status model.MovementStatus) []Action {
	var out []Action
	for _, a := range []Action{ActionApprove, ActionReject, ActionComplete, ActionCancel} {
		if CanTransition(status, a) {
			out = append(out, a)
		}
	}
	return out
}

// Deletable movements never touched stock.
func Deletable(status model.MovementStatus) bool {
	return status == model.MovementStatusPending || status == model.MovementStatusRejected || status == model.MovementStatusCancelled
}

type Config struct {
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
}

type Service struct {
	pipeline *lifecycle.Pipeline[model.StockMovement]
	stats    *lifecycle.StatsCache[model.StockMovementStats]
	notifier Notifier
	log      *logger.Logger
}

func NewService(backend lifecycle.Backend[model.StockMovement], deps lifecycle.Deps, notifier Notifier, cfg Config) *Service {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Service{
		pipeline: lifecycle.NewPipeline(lifecycle.StockMovementKind, store.New[model.StockMovement]("stock movement"), backend, deps),
		stats:    lifecycle.NewStatsCache[model.StockMovementStats]("stock_movement", cfg.StatsTTL, deps.Metrics),
		notifier: notifier,
		log:      deps.Logger.WithFields(map[string]interface{}{"service": "stock_movement"}),
	}
}

func (s *Service) List(view query.View[model.StockMovementFilters]) (query.Page[model.StockMovement], error) {
	filter, err := BuildFilter(view.Filters, s.pipeline.Now())
	if err != nil {
		return query.Page[model.StockMovement]{}, err
	}
	return query.Run(s.pipeline.Store().Snapshot(), view, filter, SortFields), nil
}

func (s *Service) Get(id uuid.UUID) (model.StockMovement, error) {
	return s.pipeline.Store().Get(id)
}

func (s *Service) Stats() model.StockMovementStats {
	st := s.pipeline.Store()
	now := s.pipeline.Now()
	return s.stats.Get(st.Revision(), now, func() model.StockMovementStats {
		return ComputeStats(st.Snapshot(), now)
	})
}

func (s *Service) ExportTable(view query.View[model.StockMovementFilters]) (export.Table, error) {
	filter, err := BuildFilter(view.Filters, s.pipeline.Now())
	if err != nil {
		return export.Table{}, err
	}
	movements := filter.Apply(s.pipeline.Store().Snapshot())
	query.SortStable(movements, view.Sort, SortFields)

	rows := make([][]string, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, exportRow(m))
	}
	return export.Table{Title: "Stock Movements", Columns: exportColumns, Rows: rows}, nil
}

func (s *Service) Refresh(ctx context.Context) (int, error) {
	return s.pipeline.Refresh(ctx)
}

func (s *Service) Apply(ev model.ChangeEvent) error {
	return s.pipeline.Apply(ev)
}

// Create records a movement. Movements that need approval start pending;
// the rest complete immediately.
func (s *Service) Create(ctx context.Context, actor model.Actor, req model.CreateStockMovementRequest) (model.StockMovement, model.Notification, error) {
	if err := lifecycle.Validate(req); err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	if err := checkLocations(req); err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	now := s.pipeline.Now()

	m := model.StockMovement{
		Base:             model.NewBase(now),
		ItemID:           req.ItemID,
		ItemName:         req.ItemName,
		ItemCode:         req.ItemCode,
		Type:             req.Type,
		Reason:           req.Reason,
		Quantity:         req.Quantity,
		UnitCost:         req.UnitCost,
		FromLocationID:   req.FromLocationID,
		FromLocationName: req.FromLocationName,
		ToLocationID:     req.ToLocationID,
		ToLocationName:   req.ToLocationName,
		BatchNumber:      req.BatchNumber,
		ExpiryDate:       req.ExpiryDate,
		DocumentNumber:   req.DocumentNumber,
		MovementDate:     now,
		RequiresApproval: req.RequiresApproval,
		PerformedBy:      actor.ID,
		PerformedByName:  actor.Name,
		Notes:            req.Notes,
		Tags:             req.Tags,
	}
	if req.Date != nil {
		m.MovementDate = *req.Date
	}
	m.Status = model.MovementStatusCompleted
	if m.RequiresApproval {
		m.Status = model.MovementStatusPending
	}
	m.Recalculate()
	m.StatusHistory = model.AppendHistory(nil, historyEntry(m.Status, actor, now, "Movement recorded"))

	saved, err := s.pipeline.Create(ctx, actor, m)
	if err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	title := "Movement recorded"
	if saved.PendingApproval() {
		title = "Movement awaiting approval"
	}
	return saved, s.notify(ctx, saved, model.NotificationSuccess, title,
		fmt.Sprintf("%s of %d x %s recorded.", saved.Type, saved.Quantity, saved.ItemName)), nil
}

// Update edits a movement that is still pending.
func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateStockMovementRequest) (model.StockMovement, model.Notification, error) {
	if err := lifecycle.Validate(req); err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	if req.Version == 0 {
		return model.StockMovement{}, model.Notification{}, apperrors.BadRequest("stock movement version is required", nil)
	}
	cur, err := s.Get(id)
	if err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	if err := lifecycle.CheckVersion("stock movement", req.Version, cur.Version); err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	if cur.Status != model.MovementStatusPending {
		return model.StockMovement{}, model.Notification{}, apperrors.IllegalTransition("stock movement", string(cur.Status), "update")
	}

	next := cur.Clone()
	if req.Reason != nil {
		next.Reason = *req.Reason
	}
	if req.Quantity != nil {
		next.Quantity = *req.Quantity
		if err := checkQuantity(next.Type, next.Quantity); err != nil {
			return model.StockMovement{}, model.Notification{}, err
		}
	}
	if req.UnitCost != nil {
		next.UnitCost = *req.UnitCost
	}
	if req.BatchNumber != nil {
		next.BatchNumber = *req.BatchNumber
	}
	if req.ExpiryDate != nil {
		next.ExpiryDate = req.ExpiryDate
	}
	if req.DocumentNumber != nil {
		next.DocumentNumber = *req.DocumentNumber
	}
	if req.Notes != nil {
		next.Notes = *req.Notes
	}
	if req.Tags != nil {
		next.Tags = req.Tags
	}
	next.Recalculate()
	next.UpdatedAt = s.pipeline.Now()

	saved, err := s.pipeline.Update(ctx, actor, cur, next)
	if err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	return saved, s.notify(ctx, saved, model.NotificationSuccess, "Movement updated",
		fmt.Sprintf("Movement of %s was updated.", saved.ItemName)), nil
}

func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID, version int64) (model.Notification, error) {
	cur, err := s.Get(id)
	if err != nil {
		return model.Notification{}, err
	}
	if err := lifecycle.CheckVersion("stock movement", version, cur.Version); err != nil {
		return model.Notification{}, err
	}
	if !Deletable(cur.Status) {
		return model.Notification{}, apperrors.IllegalTransition("stock movement", string(cur.Status), "delete")
	}
	if err := s.pipeline.Delete(ctx, actor, cur); err != nil {
		return model.Notification{}, err
	}
	return s.notify(ctx, cur, model.NotificationSuccess, "Movement deleted",
		fmt.Sprintf("Movement of %s was deleted.", cur.ItemName)), nil
}

func (s *Service) Approve(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.StockMovement, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionApprove, req)
}

func (s *Service) Reject(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.StockMovement, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionReject, req)
}

func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.StockMovement, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionComplete, req)
}

func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.StockMovement, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionCancel, req)
}

func (s *Service) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, action Action, req model.TransitionRequest) (model.StockMovement, model.Notification, error) {
	t, ok := transitions[action]
	if !ok {
		return model.StockMovement{}, model.Notification{}, apperrors.BadRequest(fmt.Sprintf("unknown stock movement action %q", action), nil)
	}
	if action == ActionReject && strings.TrimSpace(req.Reason) == "" {
		return model.StockMovement{}, model.Notification{}, apperrors.BadRequest("a rejection reason is required", nil)
	}
	cur, err := s.Get(id)
	if err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	if err := lifecycle.CheckVersion("stock movement", req.Version, cur.Version); err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	if !CanTransition(cur.Status, action) {
		return model.StockMovement{}, model.Notification{}, apperrors.IllegalTransition("stock movement", string(cur.Status), string(action))
	}
	if (action == ActionApprove || action == ActionReject) && !actor.HasRole(model.RoleApprover) {
		return model.StockMovement{}, model.Notification{}, apperrors.Forbidden(fmt.Sprintf("%s requires the %s role", action, model.RoleApprover))
	}

	now := s.pipeline.Now()
	note := req.Note
	if note == "" {
		note = req.Reason
	}
	next := cur.Clone()
	switch action {
	case ActionApprove:
		next.ApprovedBy, next.ApprovedByName, next.ApprovedAt = actor.ID, actor.Name, &now
	case ActionReject:
		next.RejectionReason = req.Reason
	}
	next.Status = t.to
	next.UpdatedAt = now
	next.StatusHistory = model.AppendHistory(cur.StatusHistory, historyEntry(t.to, actor, now, note))

	saved, err := s.pipeline.Transition(ctx, actor, string(action), cur, next, string(cur.Status), string(t.to), note)
	if err != nil {
		return model.StockMovement{}, model.Notification{}, err
	}
	level := model.NotificationSuccess
	if t.to == model.MovementStatusRejected || t.to == model.MovementStatusCancelled {
		level = model.NotificationWarning
	}
	return saved, s.notify(ctx, saved, level, "Movement "+string(saved.Status),
		fmt.Sprintf("Movement of %s is now %s.", saved.ItemName, saved.Status)), nil
}

func (s *Service) BulkTransition(ctx context.Context, actor model.Actor, ids []uuid.UUID, action Action, note string) []model.Outcome {
	return lifecycle.Bulk(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		_, _, err := s.Transition(ctx, actor, id, action, model.TransitionRequest{Note: note, Reason: note})
		return err
	})
}

func (s *Service) BulkDelete(ctx context.Context, actor model.Actor, ids []uuid.UUID) []model.Outcome {
	return lifecycle.Bulk(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.Delete(ctx, actor, id, 0)
		return err
	})
}

func (s *Service) notify(ctx context.Context, m model.StockMovement, level model.NotificationLevel, title, msg string) model.Notification {
	n := model.Notification{
		ID:         uuid.New(),
		Level:      level,
		Title:      title,
		Message:    msg,
		EntityType: model.AuditEntityStockMovement,
		EntityID:   m.ID,
		CreatedAt:  s.pipeline.Now(),
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Error(err, "failed to deliver notification", "movement", m.ID.String())
		}
	}
	return n
}

// checkLocations enforces the locations each movement type needs.
func checkLocations(req model.CreateStockMovementRequest) error {
	switch {
	case req.Type == model.MovementTypeTransfer && (req.FromLocationID == "" || req.ToLocationID == ""):
		return apperrors.BadRequest("a transfer needs both a source and a destination location", nil)
	case req.Type == model.MovementTypeTransfer && req.FromLocationID == req.ToLocationID:
		return apperrors.BadRequest("a transfer must move stock between different locations", nil)
	}
	return checkQuantity(req.Type, req.Quantity)
}

func checkQuantity(typ model.MovementType, qty int) error {
	if typ != model.MovementTypeAdjustment && qty < 0 {
		return apperrors.BadRequest("only adjustments may carry a negative quantity", nil)
	}
	return nil
}

func historyEntry(status model.MovementStatus, actor model.Actor, now time.Time, note string) model.StatusHistoryEntry {
	return model.StatusHistoryEntry{
		Status:    string(status),
		Timestamp: now,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Note:      note,
	}
}
