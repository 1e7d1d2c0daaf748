package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

// DefaultSort shows the newest orders first.
var DefaultSort = query.Sort{Field: "orderDate", Direction: query.Desc}

// SortFields lists the sortable order fields.
var SortFields = query.Fields[model.Order]{
	"orderNumber":          func(o model.Order) any { return o.OrderNumber },
	"orderDate":            func(o model.Order) any { return o.OrderDateOrNil() },
	"expectedDeliveryDate": func(o model.Order) any { return o.ExpectedDeliveryDate },
	"totalAmount":          func(o model.Order) any { return o.TotalAmount },
	"status":               func(o model.Order) any { return string(o.Status) },
	"priority":             func(o model.Order) any { return o.Priority },
	"supplierName":         func(o model.Order) any { return o.SupplierName },
	"departmentName":       func(o model.Order) any { return o.DepartmentName },
	"createdAt":            func(o model.Order) any { return o.CreatedAt },
	"updatedAt":            func(o model.Order) any { return o.UpdatedAt },
}

var searchFields = []func(model.Order) []string{
	query.Text(func(o model.Order) string { return o.OrderNumber }),
	query.Text(func(o model.Order) string { return o.SupplierName }),
	query.Text(func(o model.Order) string { return o.DepartmentName }),
	query.Text(func(o model.Order) string { return o.RequesterName }),
	query.Text(func(o model.Order) string { return o.Notes }),
	model.Order.ItemTexts,
	func(o model.Order) []string { return o.Tags },
}

func expectedDelivery(o model.Order) *time.Time { return o.ExpectedDeliveryDate }

// BuildFilter turns a filter specification into predicates evaluated
// against now. Malformed values are rejected rather than ignored.
func BuildFilter(f model.OrderFilters, now time.Time) (*query.Filter[model.Order], error) {
	if err := validateFilters(f); err != nil {
		return nil, err
	}

	filter := &query.Filter[model.Order]{}
	filter.Where(
		query.Search(f.Search, searchFields...),
		query.Equal(model.OrderStatus(f.Status), func(o model.Order) model.OrderStatus { return o.Status }),
		query.Equal(model.OrderPriority(f.Priority), func(o model.Order) model.OrderPriority { return o.Priority }),
		query.Equal(model.OrderType(f.Type), func(o model.Order) model.OrderType { return o.Type }),
		query.Equal(f.SupplierID, func(o model.Order) string { return o.SupplierID }),
		query.Equal(f.DepartmentID, func(o model.Order) string { return o.DepartmentID }),
		query.Equal(f.RequestedBy, func(o model.Order) string { return o.RequestedBy }),
		query.TimeRange(f.DateFrom, f.DateTo, model.Order.OrderDateOrNil),
		query.TimeRange(f.DeliveryFrom, f.DeliveryTo, expectedDelivery),
		query.Missing(f.NoDeliveryDate, expectedDelivery),
		query.NumberRange(f.MinAmount, f.MaxAmount, func(o model.Order) float64 { return o.TotalAmount }),
		query.AnyOf(f.Tags, func(o model.Order) []string { return o.Tags }),
		query.Flag(f.PendingApproval, func(o model.Order) bool { return o.Status == model.OrderStatusPendingApproval }),
		query.When(f.Overdue, func(o model.Order) bool { return o.IsOverdue(now) }),
		query.Flag(f.HasQualityIssues, model.Order.HasQualityIssues),
		query.When(f.Today, func(o model.Order) bool { return query.IsToday(o.OrderDateOrNil(), now) }),
		query.When(f.ThisWeek, func(o model.Order) bool { return query.WithinLastWeek(o.OrderDateOrNil(), now) }),
		query.When(f.ThisMonth, func(o model.Order) bool { return query.WithinLastMonth(o.OrderDateOrNil(), now) }),
	)
	return filter, nil
}

func validateFilters(f model.OrderFilters) error {
	var problems []string
	if f.Status != "" && f.Status != query.All && !model.OrderStatus(f.Status).Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.Priority != "" && f.Priority != query.All && !model.OrderPriority(f.Priority).Valid() {
		problems = append(problems, fmt.Sprintf("unknown priority %q", f.Priority))
	}
	if f.Type != "" && f.Type != query.All && !model.OrderType(f.Type).Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", f.Type))
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		problems = append(problems, "dateFrom is after dateTo")
	}
	if f.DeliveryFrom != nil && f.DeliveryTo != nil && f.DeliveryFrom.After(*f.DeliveryTo) {
		problems = append(problems, "deliveryFrom is after deliveryTo")
	}
	if f.MinAmount != nil && f.MaxAmount != nil && *f.MinAmount > *f.MaxAmount {
		problems = append(problems, "minAmount is greater than maxAmount")
	}
	if len(problems) > 0 {
		return apperrors.BadRequest("invalid order filter: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

// exportColumns is the flattened layout used by file exports.
var exportColumns = []string{
	"Order Number", "Order Date", "Supplier", "Department", "Requested By",
	"Type", "Priority", "Status", "Items", "Total Amount", "Expected Delivery",
}

func exportRow(o model.Order) []string {
	return []string{
		o.OrderNumber,
		formatDate(o.OrderDateOrNil()),
		o.SupplierName,
		o.DepartmentName,
		o.RequesterName,
		string(o.Type),
		string(o.Priority),
		string(o.Status),
		strconv.Itoa(len(o.Items)),
		strconv.FormatFloat(o.TotalAmount, 'f', 2, 64),
		formatDate(o.ExpectedDeliveryDate),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
