// Package order implements purchase order views, stats and lifecycle.
package order

import (
	"context"
	"fmt"
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

// Notifier delivers user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

type Config struct {
	StatsTTL time.Duration `mapstructure:"stats_ttl"`
	// ApprovalRecipient is e-mailed when an order is submitted for approval.
	ApprovalRecipient string `mapstructure:"approval_recipient"`
	NumberPrefix      string `mapstructure:"number_prefix"`
}

type Service struct {
	pipeline *lifecycle.Pipeline[model.Order]
	stats    *lifecycle.StatsCache[model.OrderStats]
	notifier Notifier
	cfg      Config
	log      *logger.Logger
}

func NewService(backend lifecycle.Backend[model.Order], deps lifecycle.Deps, notifier Notifier, cfg Config) *Service {
	if cfg.NumberPrefix == "" {
		cfg.NumberPrefix = "PO"
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Service{
		pipeline: lifecycle.NewPipeline(lifecycle.OrderKind, store.New[model.Order]("order"), backend, deps),
		stats:    lifecycle.NewStatsCache[model.OrderStats]("order", cfg.StatsTTL, deps.Metrics),
		notifier: notifier,
		cfg:      cfg,
		log:      deps.Logger.WithFields(map[string]interface{}{"service": "order"}),
	}
}

// List returns one page of the filtered, sorted collection.
func (s *Service) List(view query.View[model.OrderFilters]) (query.Page[model.Order], error) {
	filter, err := BuildFilter(view.Filters, s.pipeline.Now())
	if err != nil {
		return query.Page[model.Order]{}, err
	}
	return query.Run(s.pipeline.Store().Snapshot(), view, filter, SortFields), nil
}

func (s *Service) Get(id uuid.UUID) (model.Order, error) {
	return s.pipeline.Store().Get(id)
}

// Stats reduces the whole collection. Results are reused until the store
// changes or the cache bucket rolls over.
func (s *Service) Stats() model.OrderStats {
	st := s.pipeline.Store()
	now := s.pipeline.Now()
	return s.stats.Get(st.Revision(), now, func() model.OrderStats {
		return ComputeStats(st.Snapshot(), now)
	})
}

// ExportTable flattens every order matching view, in view order.
func (s *Service) ExportTable(view query.View[model.OrderFilters]) (export.Table, error) {
	filter, err := BuildFilter(view.Filters, s.pipeline.Now())
	if err != nil {
		return export.Table{}, err
	}
	orders := filter.Apply(s.pipeline.Store().Snapshot())
	query.SortStable(orders, view.Sort, SortFields)

	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, exportRow(o))
	}
	return export.Table{Title: "Purchase Orders", Columns: exportColumns, Rows: rows}, nil
}

// Refresh reloads orders from the backend.
func (s *Service) Refresh(ctx context.Context) (int, error) {
	return s.pipeline.Refresh(ctx)
}

// Apply merges a change event from another instance.
func (s *Service) Apply(ev model.ChangeEvent) error {
	return s.pipeline.Apply(ev)
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req model.CreateOrderRequest) (model.Order, model.Notification, error) {
	if err := lifecycle.Validate(req); err != nil {
		return model.Order{}, model.Notification{}, err
	}
	now := s.pipeline.Now()

	o := model.Order{
		Base:                 model.NewBase(now),
		OrderNumber:          strings.TrimSpace(req.OrderNumber),
		SupplierID:           req.SupplierID,
		SupplierName:         req.SupplierName,
		DepartmentID:         req.DepartmentID,
		DepartmentName:       req.DepartmentName,
		RequestedBy:          actor.ID,
		RequesterName:        actor.Name,
		Type:                 req.Type,
		Priority:             req.Priority,
		Status:               model.OrderStatusDraft,
		Items:                buildItems(req.Items),
		TaxAmount:            req.TaxAmount,
		ShippingCost:         req.ShippingCost,
		OrderDate:            now,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		Notes:                req.Notes,
		Tags:                 req.Tags,
	}
	if o.OrderNumber == "" {
		o.OrderNumber = s.orderNumber(o.ID, now)
	}
	if o.Type == "" {
		o.Type = model.OrderTypeRegular
	}
	if o.Priority == "" {
		o.Priority = model.OrderPriorityNormal
	}
	if req.OrderDate != nil {
		o.OrderDate = *req.OrderDate
	}
	o.Recalculate()
	o.StatusHistory = model.AppendHistory(nil, historyEntry(model.OrderStatusDraft, actor, now, "Order created"))

	saved, err := s.pipeline.Create(ctx, actor, o)
	if err != nil {
		return model.Order{}, model.Notification{}, err
	}
	n := s.notify(ctx, saved, model.NotificationSuccess, "Order created",
		fmt.Sprintf("Order %s was created as a draft.", saved.OrderNumber), "")
	return saved, n, nil
}

func (s *Service) Update(ctx context.Context, actor model.Actor, id uuid.UUID, req model.UpdateOrderRequest) (model.Order, model.Notification, error) {
	if err := lifecycle.Validate(req); err != nil {
		return model.Order{}, model.Notification{}, err
	}
	if req.Version == 0 {
		return model.Order{}, model.Notification{}, apperrors.BadRequest("order version is required", nil)
	}
	cur, err := s.Get(id)
	if err != nil {
		return model.Order{}, model.Notification{}, err
	}
	if err := lifecycle.CheckVersion("order", req.Version, cur.Version); err != nil {
		return model.Order{}, model.Notification{}, err
	}
	if !Editable(cur.Status) {
		return model.Order{}, model.Notification{}, apperrors.IllegalTransition("order", string(cur.Status), "update")
	}

	next := cur.Clone()
	applyUpdate(&next, req)
	next.Recalculate()
	next.UpdatedAt = s.pipeline.Now()

	saved, err := s.pipeline.Update(ctx, actor, cur, next)
	if err != nil {
		return model.Order{}, model.Notification{}, err
	}
	n := s.notify(ctx, saved, model.NotificationSuccess, "Order updated",
		fmt.Sprintf("Order %s was updated.", saved.OrderNumber), "")
	return saved, n, nil
}

// Delete removes a draft or cancelled order. version 0 skips the client
// version check.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id uuid.UUID, version int64) (model.Notification, error) {
	cur, err := s.Get(id)
	if err != nil {
		return model.Notification{}, err
	}
	if err := lifecycle.CheckVersion("order", version, cur.Version); err != nil {
		return model.Notification{}, err
	}
	if !Deletable(cur.Status) {
		return model.Notification{}, apperrors.IllegalTransition("order", string(cur.Status), "delete")
	}
	if err := s.pipeline.Delete(ctx, actor, cur); err != nil {
		return model.Notification{}, err
	}
	return s.notify(ctx, cur, model.NotificationSuccess, "Order deleted",
		fmt.Sprintf("Order %s was deleted.", cur.OrderNumber), ""), nil
}

func (s *Service) Submit(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionSubmit, req)
}

func (s *Service) Approve(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionApprove, req)
}

func (s *Service) Reject(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionReject, req)
}

func (s *Service) Send(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionSend, req)
}

func (s *Service) Confirm(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionConfirm, req)
}

func (s *Service) Complete(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionComplete, req)
}

func (s *Service) Cancel(ctx context.Context, actor model.Actor, id uuid.UUID, req model.TransitionRequest) (model.Order, model.Notification, error) {
	return s.Transition(ctx, actor, id, ActionCancel, req)
}

// Transition performs any action except receive, which needs item
// quantities.
func (s *Service) Transition(ctx context.Context, actor model.Actor, id uuid.UUID, action Action, req model.TransitionRequest) (model.Order, model.Notification, error) {
	if action == ActionReceive {
		return model.Order{}, model.Notification{}, apperrors.BadRequest("receive requires item quantities", nil)
	}
	if _, ok := rules[action]; !ok {
		return model.Order{}, model.Notification{}, apperrors.BadRequest(fmt.Sprintf("unknown order action %q", action), nil)
	}
	if action == ActionReject && strings.TrimSpace(req.Reason) == "" {
		return model.Order{}, model.Notification{}, apperrors.BadRequest("a rejection reason is required", nil)
	}

	note := req.Note
	if note == "" {
		note = req.Reason
	}
	return s.transition(ctx, actor, id, action, req.Version, note, func(o *model.Order, now time.Time) (model.OrderStatus, error) {
		switch action {
		case ActionApprove:
			o.ApprovedBy, o.ApprovedByName, o.ApprovedAt = actor.ID, actor.Name, &now
		case ActionReject:
			o.RejectionReason = req.Reason
		case ActionSend:
			o.SentAt = &now
		case ActionConfirm:
			o.ConfirmedAt = &now
			if req.SupplierReference != "" {
				o.SupplierReference = req.SupplierReference
			}
		case ActionComplete:
			o.CompletedAt = &now
			if o.ActualDeliveryDate == nil {
				o.ActualDeliveryDate = &now
			}
		case ActionCancel:
			o.CancelledAt = &now
			o.CancellationReason = req.Reason
		}
		return rules[action].to, nil
	})
}

// Receive records delivered quantities. Quantities are cumulative per item.
// The order completes once every item is fully received.
func (s *Service) Receive(ctx context.Context, actor model.Actor, id uuid.UUID, req model.ReceiveOrderRequest) (model.Order, model.Notification, error) {
	if err := lifecycle.Validate(req); err != nil {
		return model.Order{}, model.Notification{}, err
	}
	return s.transition(ctx, actor, id, ActionReceive, req.Version, req.Note, func(o *model.Order, now time.Time) (model.OrderStatus, error) {
		if err := reconcile(o, req.Items, actor, now); err != nil {
			return "", err
		}
		if !o.FullyReceived() {
			return model.OrderStatusPartiallyReceived, nil
		}
		o.ActualDeliveryDate = &now
		o.CompletedAt = &now
		return model.OrderStatusCompleted, nil
	})
}

// transition validates and applies one status change. Every check runs on
// a clone before the backend is called, so a rejected action leaves the
// stored order untouched.
func (s *Service) transition(ctx context.Context, actor model.Actor, id uuid.UUID, action Action, version int64, note string,
	apply func(o *model.Order, now time.Time) (model.OrderStatus, error)) (model.Order, model.Notification, error) {
	cur, err := s.Get(id)
	if err != nil {
		return model.Order{}, model.Notification{}, err
	}
	if err := lifecycle.CheckVersion("order", version, cur.Version); err != nil {
		return model.Order{}, model.Notification{}, err
	}
	if !CanTransition(cur.Status, action) {
		return model.Order{}, model.Notification{}, apperrors.IllegalTransition("order", string(cur.Status), string(action))
	}
	if RequiresApprover(action) && !actor.HasRole(model.RoleApprover) {
		return model.Order{}, model.Notification{}, apperrors.Forbidden(fmt.Sprintf("%s requires the %s role", action, model.RoleApprover))
	}

	now := s.pipeline.Now()
	next := cur.Clone()
	to, err := apply(&next, now)
	if err != nil {
		return model.Order{}, model.Notification{}, err
	}
	next.Status = to
	next.UpdatedAt = now
	next.StatusHistory = model.AppendHistory(cur.StatusHistory, historyEntry(to, actor, now, note))

	saved, err := s.pipeline.Transition(ctx, actor, string(action), cur, next, string(cur.Status), string(to), note)
	if err != nil {
		return model.Order{}, model.Notification{}, err
	}
	return saved, s.transitionNotice(ctx, saved, action), nil
}

func (s *Service) transitionNotice(ctx context.Context, o model.Order, action Action) model.Notification {
	switch action {
	case ActionSubmit:
		return s.notify(ctx, o, model.NotificationInfo, "Approval requested",
			fmt.Sprintf("Order %s (%s, %.2f) is waiting for approval.", o.OrderNumber, o.SupplierName, o.TotalAmount),
			s.cfg.ApprovalRecipient)
	case ActionReject:
		return s.notify(ctx, o, model.NotificationWarning, "Order rejected",
			fmt.Sprintf("Order %s was rejected: %s", o.OrderNumber, o.RejectionReason), "")
	case ActionCancel:
		return s.notify(ctx, o, model.NotificationWarning, "Order cancelled",
			fmt.Sprintf("Order %s was cancelled.", o.OrderNumber), "")
	case ActionReceive:
		if o.Status == model.OrderStatusPartiallyReceived {
			return s.notify(ctx, o, model.NotificationInfo, "Delivery recorded",
				fmt.Sprintf("Order %s was partially received.", o.OrderNumber), "")
		}
	}
	return s.notify(ctx, o, model.NotificationSuccess, "Order "+string(o.Status),
		fmt.Sprintf("Order %s is now %s.", o.OrderNumber, strings.ReplaceAll(string(o.Status), "_", " ")), "")
}

// BulkTransition applies action to every id and reports each outcome.
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

func (s *Service) notify(ctx context.Context, o model.Order, level model.NotificationLevel, title, msg, recipient string) model.Notification {
	n := model.Notification{
		ID:         uuid.New(),
		Level:      level,
		Title:      title,
		Message:    msg,
		EntityType: model.AuditEntityOrder,
		EntityID:   o.ID,
		Recipient:  recipient,
		CreatedAt:  s.pipeline.Now(),
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Error(err, "failed to deliver notification", "order", o.OrderNumber, "title", title)
		}
	}
	return n
}

func (s *Service) orderNumber(id uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", s.cfg.NumberPrefix, now.Format("20060102"), strings.ToUpper(id.String()[:6]))
}

func historyEntry(status model.OrderStatus, actor model.Actor, now time.Time, note string) model.StatusHistoryEntry {
	return model.StatusHistoryEntry{
		Status:    string(status),
		Timestamp: now,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Note:      note,
	}
}

func buildItems(in []model.OrderItemInput) []model.OrderItem {
	items := make([]model.OrderItem, 0, len(in))
	for _, it := range in {
		items = append(items, model.OrderItem{
			ID:          uuid.NewString(),
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductCode: it.ProductCode,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return items
}

func applyUpdate(o *model.Order, req model.UpdateOrderRequest) {
	if req.SupplierID != nil {
		o.SupplierID = *req.SupplierID
	}
	if req.SupplierName != nil {
		o.SupplierName = *req.SupplierName
	}
	if req.DepartmentID != nil {
		o.DepartmentID = *req.DepartmentID
	}
	if req.DepartmentName != nil {
		o.DepartmentName = *req.DepartmentName
	}
	if req.Type != nil {
		o.Type = *req.Type
	}
	if req.Priority != nil {
		o.Priority = *req.Priority
	}
	if req.Items != nil {
		o.Items = buildItems(req.Items)
	}
	if req.TaxAmount != nil {
		o.TaxAmount = *req.TaxAmount
	}
	if req.ShippingCost != nil {
		o.ShippingCost = *req.ShippingCost
	}
	if req.ExpectedDeliveryDate != nil {
		o.ExpectedDeliveryDate = req.ExpectedDeliveryDate
	}
	if req.Notes != nil {
		o.Notes = *req.Notes
	}
	if req.Tags != nil {
		o.Tags = req.Tags
	}
}

// reconcile writes received quantities onto o's items. A quantity may not
// exceed the ordered amount nor drop below what was already received.
func reconcile(o *model.Order, received []model.ReceivedItem, actor model.Actor, now time.Time) error {
	index := make(map[string]int, len(o.Items))
	for i, it := range o.Items {
		index[it.ID] = i
	}
	for _, r := range received {
		i, ok := index[r.ItemID]
		if !ok {
			return apperrors.BadRequest(fmt.Sprintf("order has no item %q", r.ItemID), nil)
		}
		it := &o.Items[i]
		if r.ReceivedQuantity > it.Quantity {
			return apperrors.BadRequest(fmt.Sprintf("item %s: received %d exceeds ordered %d", it.ProductName, r.ReceivedQuantity, it.Quantity), nil)
		}
		if r.ReceivedQuantity < it.ReceivedQuantity {
			return apperrors.BadRequest(fmt.Sprintf("item %s: received quantity cannot decrease from %d to %d", it.ProductName, it.ReceivedQuantity, r.ReceivedQuantity), nil)
		}
		it.ReceivedQuantity = r.ReceivedQuantity
		if r.QualityCheck != nil {
			qc := *r.QualityCheck
			if qc.CheckedAt == nil {
				qc.CheckedAt = &now
			}
			if qc.CheckedBy == "" {
				qc.CheckedBy = actor.Name
			}
			it.QualityCheck = &qc
		}
	}
	return nil
}
