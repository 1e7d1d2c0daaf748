package order

import (
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

const topN = 5

// ComputeStats reduces the full order collection. It depends only on its
// arguments.
func ComputeStats(orders []model.Order, now time.Time) model.OrderStats {
	s := model.OrderStats{
		TotalOrders: len(orders),
		ByStatus:    make(map[model.OrderStatus]int, len(model.OrderStatuses)),
		ByPriority:  make(map[model.OrderPriority]int, len(model.OrderPriorities)),
		ByType:      make(map[model.OrderType]int, len(model.OrderTypes)),
		GeneratedAt: now,
	}
	for _, st := range model.OrderStatuses {
		s.ByStatus[st] = 0
	}
	for _, p := range model.OrderPriorities {
		s.ByPriority[p] = 0
	}
	for _, t := range model.OrderTypes {
		s.ByType[t] = 0
	}

	var delivered, onTime, completed, accurate int
	for _, o := range orders {
		s.ByStatus[o.Status]++
		s.ByPriority[o.Priority]++
		s.ByType[o.Type]++

		s.TotalOrderValue += o.TotalAmount
		switch {
		case o.Status.IsPending():
			s.PendingOrderValue += o.TotalAmount
		case o.Status == model.OrderStatusCompleted:
			s.CompletedOrderValue += o.TotalAmount
			completed++
			if o.Accurate() {
				accurate++
			}
		}

		if o.IsOverdue(now) {
			s.OverdueOrders++
		}
		if ok, has := o.DeliveredOnTime(); has {
			delivered++
			if ok {
				onTime++
			}
		}

		date := o.OrderDateOrNil()
		if query.IsToday(date, now) {
			s.OrdersToday++
		}
		if query.WithinLastWeek(date, now) {
			s.OrdersThisWeek++
		}
		if query.WithinLastMonth(date, now) {
			s.OrdersThisMonth++
		}
	}

	s.DraftOrders = s.ByStatus[model.OrderStatusDraft]
	s.PendingApprovalOrders = s.ByStatus[model.OrderStatusPendingApproval]
	s.ApprovedOrders = s.ByStatus[model.OrderStatusApproved]
	s.SentOrders = s.ByStatus[model.OrderStatusSent]
	s.ConfirmedOrders = s.ByStatus[model.OrderStatusConfirmed]
	s.PartiallyReceivedOrders = s.ByStatus[model.OrderStatusPartiallyReceived]
	s.CompletedOrders = s.ByStatus[model.OrderStatusCompleted]
	s.CancelledOrders = s.ByStatus[model.OrderStatusCancelled]
	s.RejectedOrders = s.ByStatus[model.OrderStatusRejected]

	s.AverageOrderValue = query.Average(s.TotalOrderValue, s.TotalOrders)
	s.OnTimeDeliveryRate = query.Percent(onTime, delivered)
	s.AccuracyRate = query.Percent(accurate, completed)

	amount := func(o model.Order) float64 { return o.TotalAmount }
	s.TopSuppliers = query.TopN(orders, topN, func(o model.Order) (string, string) {
		return groupKey(o.SupplierID, o.SupplierName), o.SupplierName
	}, amount)
	s.TopDepartments = query.TopN(orders, topN, func(o model.Order) (string, string) {
		return groupKey(o.DepartmentID, o.DepartmentName), o.DepartmentName
	}, amount)
	return s
}

// groupKey falls back to the display name for records created without an id.
func groupKey(id, name string) string {
	if id != "" {
		return id
	}
	return name
}
