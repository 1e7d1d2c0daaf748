package stockmovement

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

var DefaultSort = query.Sort{Field: "date", Direction: query.Desc}

var SortFields = query.Fields[model.StockMovement]{
	"date":           func(m model.StockMovement) any { return m.DateOrNil() },
	"itemName":       func(m model.StockMovement) any { return m.ItemName },
	"quantity":       func(m model.StockMovement) any { return m.Quantity },
	"totalCost":      func(m model.StockMovement) any { return m.TotalCost },
	"type":           func(m model.StockMovement) any { return string(m.Type) },
	"status":         func(m model.StockMovement) any { return string(m.Status) },
	"documentNumber": func(m model.StockMovement) any { return m.DocumentNumber },
	"createdAt":      func(m model.StockMovement) any { return m.CreatedAt },
	"updatedAt":      func(m model.StockMovement) any { return m.UpdatedAt },
}

var searchFields = []func(model.StockMovement) []string{
	query.Text(func(m model.StockMovement) string { return m.ItemName }),
	query.Text(func(m model.StockMovement) string { return m.ItemCode }),
	query.Text(func(m model.StockMovement) string { return m.DocumentNumber }),
	query.Text(func(m model.StockMovement) string { return m.BatchNumber }),
	query.Text(func(m model.StockMovement) string { return m.Reason }),
	query.Text(func(m model.StockMovement) string { return m.Notes }),
	query.Text(func(m model.StockMovement) string { return m.PerformedByName }),
	func(m model.StockMovement) []string { return []string{m.FromLocationName, m.ToLocationName} },
	func(m model.StockMovement) []string { return m.Tags },
}

// BuildFilter turns a filter specification into predicates evaluated
// against now.
func BuildFilter(f model.StockMovementFilters, now time.Time) (*query.Filter[model.StockMovement], error) {
	if err := validateFilters(f); err != nil {
		return nil, err
	}

	var location query.Predicate[model.StockMovement]
	if f.LocationID != "" && f.LocationID != query.All {
		location = func(m model.StockMovement) bool { return m.TouchesLocation(f.LocationID) }
	}

	filter := &query.Filter[model.StockMovement]{}
	filter.Where(
		query.Search(f.Search, searchFields...),
		query.Equal(model.MovementType(f.Type), func(m model.StockMovement) model.MovementType { return m.Type }),
		query.Equal(model.MovementStatus(f.Status), func(m model.StockMovement) model.MovementStatus { return m.Status }),
		query.Equal(f.Reason, func(m model.StockMovement) string { return m.Reason }),
		query.Equal(f.ItemID, func(m model.StockMovement) string { return m.ItemID }),
		query.Equal(f.PerformedBy, func(m model.StockMovement) string { return m.PerformedBy }),
		location,
		query.TimeRange(f.DateFrom, f.DateTo, model.StockMovement.DateOrNil),
		query.NumberRange(f.MinCost, f.MaxCost, model.StockMovement.AbsCost),
		query.AnyOf(f.Tags, func(m model.StockMovement) []string { return m.Tags }),
		query.When(f.PendingApproval, model.StockMovement.PendingApproval),
		query.When(f.Today, func(m model.StockMovement) bool { return query.IsToday(m.DateOrNil(), now) }),
		query.When(f.ThisWeek, func(m model.StockMovement) bool { return query.WithinLastWeek(m.DateOrNil(), now) }),
		query.When(f.ThisMonth, func(m model.StockMovement) bool { return query.WithinLastMonth(m.DateOrNil(), now) }),
	)
	return filter, nil
}

func validateFilters(f model.StockMovementFilters) error {
	var problems []string
	if f.Type != "" && f.Type != query.All && !model.MovementType(f.Type).Valid() {
		problems = append(problems, fmt.Sprintf("unknown type %q", f.Type))
	}
	if f.Status != "" && f.Status != query.All && !model.MovementStatus(f.Status).Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", f.Status))
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		problems = append(problems, "dateFrom is after dateTo")
	}
	if f.MinCost != nil && f.MaxCost != nil && *f.MinCost > *f.MaxCost {
		problems = append(problems, "minCost is greater than maxCost")
	}
	if len(problems) > 0 {
		return apperrors.BadRequest("invalid stock movement filter: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

var exportColumns = []string{
	"Date", "Item Code", "Item", "Type", "Reason", "Status", "Quantity",
	"Unit Cost", "Total Cost", "From", "To", "Document", "Performed By",
}

func exportRow(m model.StockMovement) []string {
	date := ""
	if d := m.DateOrNil(); d != nil {
		date = d.Format("2006-01-02 15:04")
	}
	return []string{
		date,
		m.ItemCode,
		m.ItemName,
		string(m.Type),
		m.Reason,
		string(m.Status),
		strconv.Itoa(m.Quantity),
		strconv.FormatFloat(m.UnitCost, 'f', 2, 64),
		strconv.FormatFloat(m.TotalCost, 'f', 2, 64),
		m.FromLocationName,
		m.ToLocationName,
		m.DocumentNumber,
		m.PerformedByName,
	}
}
